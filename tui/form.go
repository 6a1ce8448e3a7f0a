package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tasklist/app"
	"tasklist/model"
)

type formField int

const (
	fieldText formField = iota
	fieldPriority
	fieldCategory
	fieldFrom
	fieldDue
	fieldReminder
	fieldCount
)

var fieldLabels = [fieldCount]string{
	fieldText:     "Task",
	fieldPriority: "Priority",
	fieldCategory: "Category",
	fieldFrom:     "Start",
	fieldDue:      "Due",
	fieldReminder: "Reminder",
}

var fieldPlaceholders = [fieldCount]string{
	fieldText:     "What needs to be done?",
	fieldPriority: "high / medium / low",
	fieldCategory: model.DefaultCategory,
	fieldFrom:     "YYYY-MM-DD",
	fieldDue:      "YYYY-MM-DD",
	fieldReminder: "YYYY-MM-DD HH:MM",
}

// addForm collects the raw fields of a new task. Values are passed to the
// service unparsed; validation happens there.
type addForm struct {
	inputs []textinput.Model
	focus  formField
}

func newAddForm(category string) addForm {
	f := addForm{inputs: make([]textinput.Model, fieldCount)}
	for i := range f.inputs {
		in := textinput.New()
		in.Prompt = ""
		in.Placeholder = fieldPlaceholders[i]
		in.CharLimit = 64
		f.inputs[i] = in
	}
	f.inputs[fieldText].CharLimit = 0
	f.inputs[fieldPriority].SetValue(string(model.PriorityMedium))
	if category != "" && category != model.CategoryAll {
		f.inputs[fieldCategory].SetValue(category)
	}
	f.inputs[fieldText].Focus()
	return f
}

func (f *addForm) move(delta int) tea.Cmd {
	f.inputs[f.focus].Blur()
	next := (int(f.focus) + delta) % int(fieldCount)
	if next < 0 {
		next += int(fieldCount)
	}
	f.focus = formField(next)
	return f.inputs[f.focus].Focus()
}

func (f *addForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

func (f *addForm) setWidth(width int) {
	w := width - 14
	if w < 10 {
		w = 10
	}
	for i := range f.inputs {
		f.inputs[i].Width = w
	}
}

func (f addForm) input() app.CreateInput {
	value := func(field formField) string {
		return strings.TrimSpace(f.inputs[field].Value())
	}
	return app.CreateInput{
		Text:     f.inputs[fieldText].Value(),
		Priority: value(fieldPriority),
		Category: value(fieldCategory),
		FromDate: value(fieldFrom),
		DueDate:  value(fieldDue),
		Reminder: value(fieldReminder),
	}
}

func (f addForm) view(width int) string {
	label := lipgloss.NewStyle().Width(10).Foreground(lipgloss.Color("245"))
	active := label.Foreground(lipgloss.Color("229")).Bold(true)

	rows := []string{lipgloss.NewStyle().Bold(true).Render("New task")}
	for i, in := range f.inputs {
		l := label
		if formField(i) == f.focus {
			l = active
		}
		rows = append(rows, l.Render(fieldLabels[i])+" "+in.View())
	}
	rows = append(rows, lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("Tab/Shift+Tab field • Enter save • Esc cancel"))

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")).
		Padding(0, 1).
		Width(width).
		Render(strings.Join(rows, "\n"))
}
