package tui

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"tasklist/model"
	"tasklist/query"
)

const helpMarkdown = `# Shortcuts

## Global
- **Tab** switch focus • **j/k** move • **q** quit
- **/** search • **f** cycle filter • **u** undo
- **?** toggle this help • **Esc** close or clear search

## Categories pane
- **Enter** filter by the selected category

## Tasks pane
- **a** add a task (text, priority, category, dates, reminder)
- **e** edit text (open tasks only)
- **x**, **Space** or **Enter** complete / reopen
- **d** delete • **C** clear completed

Dates use ` + "`YYYY-MM-DD`" + `, reminders ` + "`YYYY-MM-DD HH:MM`" + `.
`

func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "loading..."
	}

	tasks := m.svc.List()
	stats := query.Stats(tasks)

	title := lipgloss.NewStyle().Bold(true).Render("tasklist")
	summary := fmt.Sprintf("focus: %s • filter: %s • category: %s", m.focus.String(), filterLabel(m.view.Status), m.view.Category)
	if m.view.Search != "" {
		summary += " • search: \"" + m.view.Search + "\""
	}
	header := lipgloss.JoinHorizontal(lipgloss.Left,
		title,
		lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("  "+summary),
	)

	viewW := m.viewportWidth()
	const paneGap = 1
	const rightInset = 6
	outerPaneW := viewW - rightInset
	if outerPaneW < 40 {
		outerPaneW = viewW
	}
	innerPaneW := outerPaneW - 2
	if innerPaneW < 20 {
		innerPaneW = outerPaneW
	}

	panelH := m.height - 7
	if panelH < 8 {
		panelH = 8
	}
	innerPaneH := panelH - 2
	if innerPaneH < 6 {
		innerPaneH = 6
	}

	leftW, rightW := m.paneWidths(innerPaneW, paneGap)
	split := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderCategoriesPanel(leftW, innerPaneH),
		lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("│"),
		m.renderTasksPanel(rightW, innerPaneH, len(tasks)),
	)

	frameColor := lipgloss.Color("240")
	if m.mode == modeNormal {
		frameColor = lipgloss.Color("39")
	}
	panes := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(frameColor).
		Width(outerPaneW).
		Height(panelH).
		Render(split)

	if outerPaneW < viewW {
		panes = lipgloss.JoinHorizontal(lipgloss.Top, panes, strings.Repeat(" ", viewW-outerPaneW))
	}

	if m.showHelp {
		popupW := viewW - 8
		if popupW > 96 {
			popupW = 96
		}
		if popupW < 40 {
			popupW = 40
		}
		panes = lipgloss.Place(viewW, panelH, lipgloss.Center, lipgloss.Center, m.renderHelpOverlay(popupW))
	} else if m.mode == modeAdd {
		panes = lipgloss.Place(viewW, panelH, lipgloss.Center, lipgloss.Center, m.form.view(clamp(viewW-8, 30, 80)))
	}

	statusText := m.status
	if statusText == "" {
		statusText = "Ready"
	}
	statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("70"))
	if m.statusErr {
		statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	}
	rightHint := "? shortcuts"
	if m.showHelp {
		rightHint = "Esc/? close shortcuts"
	}

	parts := []string{header, m.renderStats(stats), panes, m.renderFooter(statusText, statusStyle, rightHint)}
	if prompt := m.promptLine(); prompt != "" && !m.showHelp {
		parts = append(parts, lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Width(viewW).Render(prompt))
	}
	return strings.Join(parts, "\n")
}

func (m *Model) promptLine() string {
	switch m.mode {
	case modeEdit:
		return "Edit task: " + m.edit.View()
	case modeSearch:
		return "Search (/): " + m.search.View() + "  (Enter keeps, Esc clears)"
	case modeConfirmDelete:
		return fmt.Sprintf("Delete task \"%s\"? [y/N]", truncateRunes(m.confirmName, 60))
	case modeConfirmClear:
		return fmt.Sprintf("Delete %d completed tasks? [y/N]", m.confirmCount)
	}
	return ""
}

func (m *Model) renderStats(s model.Stats) string {
	label := fmt.Sprintf("%d tasks • %d done • %d pending • %d%%", s.Total, s.Completed, s.Pending, s.ProgressPercent)
	bar := m.progress.ViewAs(float64(s.ProgressPercent) / 100)
	return lipgloss.JoinHorizontal(lipgloss.Left, bar, "  ", lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render(label))
}

func (m *Model) viewportWidth() int {
	if m.width <= 0 {
		return 1
	}
	// One spare column keeps the right border from wrapping in some terminals.
	if m.width > 1 {
		return m.width - 1
	}
	return m.width
}

func (m *Model) paneWidths(total, gap int) (int, int) {
	if total <= 0 {
		return 24, 30
	}
	if gap < 0 {
		gap = 0
	}

	minLeft := 16
	minRight := 30
	if total < minLeft+minRight+gap {
		left := total / 3
		if left < 12 {
			left = 12
		}
		right := total - left - gap
		if right < 12 {
			right = 12
			left = total - right - gap
			if left < 10 {
				left = 10
			}
		}
		return left, right
	}

	left := total / 5
	if left < 18 {
		left = 18
	}
	if left > 28 {
		left = 28
	}

	right := total - left - gap
	if right < minRight {
		right = minRight
		left = total - right - gap
	}
	if left < minLeft {
		left = minLeft
		right = total - left - gap
	}

	return left, right
}

func (m *Model) renderFooter(statusText string, statusStyle lipgloss.Style, rightHint string) string {
	left := strings.TrimSpace(statusText)
	right := strings.TrimSpace(rightHint)
	if left == "" {
		left = "Ready"
	}
	if right == "" {
		right = "? shortcuts"
	}

	leftW := utf8.RuneCountInString(left)
	rightW := utf8.RuneCountInString(right)
	width := m.viewportWidth()
	if width <= 0 {
		width = leftW + rightW + 2
	}

	if leftW+rightW+1 > width {
		maxLeft := width - rightW - 1
		if maxLeft < 8 {
			maxLeft = 8
		}
		left = truncateRunes(left, maxLeft)
		leftW = utf8.RuneCountInString(left)
	}

	padding := width - leftW - rightW
	if padding < 1 {
		padding = 1
	}

	rightStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	line := statusStyle.Render(left) + strings.Repeat(" ", padding) + rightStyle.Render(right)
	return lipgloss.NewStyle().Width(width).Render(line)
}

func (m *Model) renderHelpOverlay(width int) string {
	inner := width - 6
	if m.helpRenderer == nil || m.helpWidth != inner {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(inner),
		)
		if err == nil {
			m.helpRenderer = r
			m.helpWidth = inner
		}
	}

	body := helpMarkdown
	if m.helpRenderer != nil {
		if out, err := m.helpRenderer.Render(helpMarkdown); err == nil {
			body = strings.TrimRight(out, "\n")
		}
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("244")).
		Padding(0, 1)
	return style.Width(width).Render(body)
}

func (m *Model) renderCategoriesPanel(width, height int) string {
	cats := m.categories()
	lines := make([]string, 0, len(cats)+1)
	lines = append(lines, panelTitleStyled("Categories", m.focus == focusCategories))

	for i, c := range cats {
		cursor := " "
		if i == m.catCursor && m.focus == focusCategories {
			cursor = "▸"
		}
		marker := " "
		if c == m.view.Category {
			marker = "●"
		}
		line := truncateRunes(fmt.Sprintf("%s %s %s", cursor, marker, c), width)
		style := lipgloss.NewStyle()
		if c == m.view.Category {
			style = style.Bold(true)
		}
		if i == m.catCursor && m.focus == focusCategories {
			style = style.Foreground(lipgloss.Color("229"))
		}
		lines = append(lines, style.Render(line))
	}

	return lipgloss.NewStyle().Width(width).Height(height).Render(strings.Join(lines, "\n"))
}

func (m *Model) renderTasksPanel(width, height, total int) string {
	tasks := m.visibleTasks()
	now := m.clock.Now()

	lines := make([]string, 0, len(tasks)+2)
	lines = append(lines, panelTitleStyled(fmt.Sprintf("Tasks (%d/%d)", len(tasks), total), m.focus == focusTasks))

	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	switch {
	case total == 0:
		lines = append(lines, muted.Render("No tasks yet. Press 'a' to add one."))
	case len(tasks) == 0 && m.view.Search != "":
		lines = append(lines, muted.Render("No task matches the current search."))
	case len(tasks) == 0:
		lines = append(lines, muted.Render("No task for the current filter (use 'f' or pick a category)."))
	}

	// Keep the cursor on screen when the list is taller than the pane.
	visible := height - 1
	if visible < 1 {
		visible = 1
	}
	start := 0
	if m.taskCursor >= visible {
		start = m.taskCursor - visible + 1
	}

	for i := start; i < len(tasks) && i < start+visible; i++ {
		t := tasks[i]
		selected := i == m.taskCursor
		cursor := " "
		if selected {
			cursor = "▸"
		}
		check := "[ ]"
		if t.Completed {
			check = "[x]"
		}

		textStyle := lipgloss.NewStyle()
		if t.Completed {
			textStyle = textStyle.Faint(true)
		}
		cursorStyle := lipgloss.NewStyle()
		if selected {
			cursorStyle = cursorStyle.Bold(true)
			textStyle = textStyle.Bold(true)
			if m.focus == focusTasks {
				sel := lipgloss.Color("229")
				cursorStyle = cursorStyle.Foreground(sel)
				textStyle = textStyle.Foreground(sel)
			}
		}

		meta := taskMeta(t, now)
		textW := width - 9 - utf8.RuneCountInString(meta)
		if textW < 8 {
			textW = 8
		}
		line := lipgloss.JoinHorizontal(lipgloss.Left,
			cursorStyle.Render(cursor+" "+check+" "),
			priorityIndicator(t.Priority)+" ",
			textStyle.Render(truncateRunes(t.Text, textW)),
			metaStyle(t, now).Render(meta),
		)
		lines = append(lines, line)
	}

	return lipgloss.NewStyle().Width(width).Height(height).Render(strings.Join(lines, "\n"))
}

func taskMeta(t model.Task, now time.Time) string {
	parts := []string{"#" + t.Category}
	if t.DueDate != nil {
		parts = append(parts, "due "+t.DueDate.Format("Jan 2"))
	}
	if t.Reminder != nil && !t.Completed && t.Reminder.After(now) {
		parts = append(parts, "⏰ "+t.Reminder.In(now.Location()).Format("Jan 2 15:04"))
	}
	return "  " + strings.Join(parts, " • ")
}

func metaStyle(t model.Task, now time.Time) lipgloss.Style {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	if !t.Completed && t.DueDate != nil && model.EndOfDay(*t.DueDate).Before(now) {
		style = style.Foreground(lipgloss.Color("203"))
	}
	return style
}

func panelTitleStyled(title string, active bool) string {
	base := lipgloss.NewStyle().Bold(true)
	if !active {
		return base.Render(title)
	}
	text := base.Foreground(lipgloss.Color("229")).Render(title)
	marker := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")).Render("*")
	return lipgloss.JoinHorizontal(lipgloss.Left, text, " ", marker)
}

func priorityIndicator(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Render("🔥")
	case model.PriorityLow:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("114")).Render("🌱")
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Render("⚡")
}

func filterLabel(f model.StatusFilter) string {
	switch f {
	case model.StatusActive:
		return "active"
	case model.StatusCompleted:
		return "completed"
	default:
		return "all"
	}
}
