package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"tasklist/app"
	"tasklist/clock"
	"tasklist/model"
	"tasklist/query"
)

type focusPane int

const (
	focusCategories focusPane = iota
	focusTasks
)

func (f focusPane) String() string {
	if f == focusTasks {
		return "tasks"
	}
	return "categories"
}

type uiMode int

const (
	modeNormal uiMode = iota
	modeAdd
	modeEdit
	modeSearch
	modeConfirmDelete
	modeConfirmClear
)

// ViewStore keeps the filter state between sessions.
type ViewStore interface {
	SaveView(v model.ViewState) error
}

type Options struct {
	Views ViewStore
	View  model.ViewState
	// Categories are offered before the ones found on tasks.
	Categories    []string
	ErrorDismiss  time.Duration
	Notifications <-chan model.Notification
	Clock         clock.Clock
	StartupStatus string
	Logger        *zap.Logger
}

type notificationMsg model.Notification

type eventMsg app.Event

type dismissMsg struct{ seq int }

type Model struct {
	svc           *app.Service
	views         ViewStore
	log           *zap.Logger
	clock         clock.Clock
	suggested     []string
	errorDismiss  time.Duration
	notifications <-chan model.Notification
	events        chan app.Event
	unsubscribe   func()

	focus      focusPane
	mode       uiMode
	catCursor  int
	taskCursor int
	view       model.ViewState

	form   addForm
	edit   textinput.Model
	search textinput.Model

	confirmID    string
	confirmName  string
	confirmCount int

	showHelp     bool
	helpRenderer *glamour.TermRenderer
	helpWidth    int

	status         string
	statusErr      bool
	statusSeq      int
	dismissPending bool

	progress progress.Model

	width  int
	height int
}

func NewModel(svc *app.Service, opts Options) *Model {
	status := strings.TrimSpace(opts.StartupStatus)
	if status == "" {
		status = "Ready"
	}

	m := &Model{
		svc:           svc,
		views:         opts.Views,
		log:           opts.Logger,
		clock:         opts.Clock,
		suggested:     opts.Categories,
		errorDismiss:  opts.ErrorDismiss,
		notifications: opts.Notifications,
		events:        make(chan app.Event, 32),
		focus:         focusTasks,
		mode:          modeNormal,
		view:          opts.View.Normalize(),
		status:        status,
		progress:      progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	if m.clock == nil {
		m.clock = clock.RealClock{}
	}
	if m.errorDismiss <= 0 {
		m.errorDismiss = 5 * time.Second
	}

	m.edit = textinput.New()
	m.edit.Prompt = ""
	m.search = textinput.New()
	m.search.Prompt = ""
	m.search.Placeholder = "search tasks"

	m.unsubscribe = svc.Subscribe(m.forwardEvent)
	m.restoreCategoryCursor()
	m.ensureSelection()
	return m
}

// Close detaches the model from the service.
func (m *Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForNotification(), m.waitForEvent())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = clamp(m.viewportWidth()/3, 10, 40)
		m.form.setWidth(m.viewportWidth() - 4)
		m.edit.Width = m.viewportWidth() - 20
		m.search.Width = m.viewportWidth() - 20
	case notificationMsg:
		m.setStatus(fmt.Sprintf("⏰ Reminder: %s (%s)", msg.Text, msg.Category), false)
		cmds = append(cmds, m.waitForNotification())
	case eventMsg:
		m.handleEvent(app.Event(msg))
		cmds = append(cmds, m.waitForEvent())
	case dismissMsg:
		if msg.seq == m.statusSeq && m.statusErr {
			m.status = ""
			m.statusErr = false
		}
	case tea.KeyMsg:
		switch m.mode {
		case modeAdd:
			cmds = append(cmds, m.updateAddMode(msg))
		case modeEdit, modeSearch:
			cmds = append(cmds, m.updateInputMode(msg))
		case modeConfirmDelete, modeConfirmClear:
			m.updateConfirmMode(msg)
		default:
			if quit := m.updateNormalMode(msg); quit {
				m.saveView()
				m.Close()
				return m, tea.Quit
			}
			if m.mode == modeAdd || m.mode == modeEdit || m.mode == modeSearch {
				cmds = append(cmds, textinput.Blink)
			}
		}
	default:
		switch m.mode {
		case modeAdd:
			cmds = append(cmds, m.form.update(msg))
		case modeEdit:
			var cmd tea.Cmd
			m.edit, cmd = m.edit.Update(msg)
			cmds = append(cmds, cmd)
		case modeSearch:
			var cmd tea.Cmd
			m.search, cmd = m.search.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	if m.dismissPending {
		m.dismissPending = false
		seq := m.statusSeq
		cmds = append(cmds, tea.Tick(m.errorDismiss, func(time.Time) tea.Msg { return dismissMsg{seq: seq} }))
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) updateNormalMode(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "ctrl+c", "q":
		return true
	case "tab":
		if m.focus == focusCategories {
			m.focus = focusTasks
		} else {
			m.focus = focusCategories
		}
		m.setStatus(fmt.Sprintf("Focus on %s", m.focus.String()), false)
	case "j", "down":
		m.moveCursor(1)
	case "k", "up":
		m.moveCursor(-1)
	case "enter":
		m.handleEnter()
	case "a":
		m.startAdd()
	case "e":
		m.startEdit()
	case "x", " ":
		m.toggleSelected()
	case "d":
		m.startDeleteConfirm()
	case "C":
		m.startClearConfirm()
	case "u":
		m.undo()
	case "f":
		m.cycleFilter()
	case "/":
		m.mode = modeSearch
		m.search.SetValue(m.view.Search)
		m.search.CursorEnd()
		m.search.Focus()
		m.setStatus("Incremental search: type to filter", false)
	case "?":
		m.showHelp = !m.showHelp
		if m.showHelp {
			m.setStatus("Shortcuts open (? or Esc to close)", false)
		} else {
			m.setStatus("Shortcuts hidden", false)
		}
	case "esc":
		if m.showHelp {
			m.showHelp = false
			m.setStatus("Shortcuts hidden", false)
			break
		}
		if strings.TrimSpace(m.view.Search) != "" {
			m.view.Search = ""
			m.taskCursor = 0
			m.saveView()
			m.setStatus("Search cleared", false)
		}
	}

	m.ensureSelection()
	return false
}

func (m *Model) updateAddMode(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.mode = modeNormal
		m.setStatus("Cancelled", false)
		return nil
	case "tab", "down":
		return m.form.move(1)
	case "shift+tab", "up":
		return m.form.move(-1)
	case "enter":
		m.applyAdd()
		return nil
	}
	return m.form.update(msg)
}

func (m *Model) updateInputMode(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c", "esc":
		if m.mode == modeSearch {
			m.view.Search = ""
			m.taskCursor = 0
			m.saveView()
			m.setStatus("Search cleared", false)
		} else {
			m.setStatus("Cancelled", false)
		}
		m.mode = modeNormal
		m.edit.Blur()
		m.search.Blur()
		return nil
	case "enter":
		m.applyInput()
		return nil
	}

	var cmd tea.Cmd
	if m.mode == modeSearch {
		m.search, cmd = m.search.Update(msg)
		m.view.Search = strings.TrimSpace(m.search.Value())
		m.taskCursor = 0
		m.ensureSelection()
		return cmd
	}
	m.edit, cmd = m.edit.Update(msg)
	return cmd
}

func (m *Model) updateConfirmMode(msg tea.KeyMsg) {
	switch strings.ToLower(msg.String()) {
	case "y":
		if m.mode == modeConfirmClear {
			m.confirmClear()
			return
		}
		m.confirmDelete()
	case "n", "esc", "enter":
		m.confirmID = ""
		m.confirmName = ""
		m.confirmCount = 0
		m.mode = modeNormal
		m.setStatus("Cancelled", false)
	}
}

func (m *Model) applyAdd() {
	task, err := m.svc.Create(m.form.input())
	if err != nil {
		m.setError(err)
		return
	}
	m.mode = modeNormal
	// New tasks may be hidden by the current filter.
	if !m.isVisible(task.ID) {
		m.view.Status = model.StatusAll
		m.view.Search = ""
		if m.view.Category != model.CategoryAll && m.view.Category != task.Category {
			m.view.Category = model.CategoryAll
			m.restoreCategoryCursor()
		}
		m.saveView()
	}
	m.taskCursor = m.indexOfTask(task.ID)
	m.commit("Task added")
}

func (m *Model) applyInput() {
	switch m.mode {
	case modeEdit:
		if _, err := m.svc.Edit(m.confirmID, m.edit.Value()); err != nil {
			if errors.Is(err, app.ErrTaskNotFound) {
				m.mode = modeNormal
				m.setStatus("Task no longer exists", false)
				return
			}
			m.setError(err)
			return
		}
		m.mode = modeNormal
		m.confirmID = ""
		m.edit.Blur()
		m.commit("Task updated")
	case modeSearch:
		m.view.Search = strings.TrimSpace(m.search.Value())
		m.mode = modeNormal
		m.search.Blur()
		m.taskCursor = 0
		m.saveView()
		if m.view.Search == "" {
			m.setStatus("Search cleared", false)
			return
		}
		m.setStatus("Search applied", false)
	}
}

func (m *Model) moveCursor(delta int) {
	if m.focus == focusCategories {
		cats := m.categories()
		m.catCursor = clamp(m.catCursor+delta, 0, len(cats)-1)
		return
	}
	tasks := m.visibleTasks()
	if len(tasks) == 0 {
		return
	}
	m.taskCursor = clamp(m.taskCursor+delta, 0, len(tasks)-1)
}

func (m *Model) handleEnter() {
	if m.focus != focusCategories {
		m.toggleSelected()
		return
	}
	cats := m.categories()
	m.view.Category = cats[clamp(m.catCursor, 0, len(cats)-1)]
	m.taskCursor = 0
	m.saveView()
	m.setStatus(fmt.Sprintf("Category: %s", m.view.Category), false)
}

func (m *Model) startAdd() {
	m.form = newAddForm(m.view.Category)
	m.form.setWidth(m.viewportWidth() - 4)
	m.mode = modeAdd
}

func (m *Model) startEdit() {
	if m.focus != focusTasks {
		m.setStatus("Edit task: switch focus to tasks (Tab)", false)
		return
	}
	task, ok := m.selectedTask()
	if !ok {
		m.setStatus("No task selected", true)
		return
	}
	if task.Completed {
		m.setStatus("Completed tasks cannot be edited. Reopen it with x first.", true)
		return
	}
	m.mode = modeEdit
	m.confirmID = task.ID
	m.edit.SetValue(task.Text)
	m.edit.CursorEnd()
	m.edit.Focus()
}

func (m *Model) toggleSelected() {
	if m.focus != focusTasks {
		m.setStatus("Toggle task: switch focus to tasks (Tab)", false)
		return
	}
	task, ok := m.selectedTask()
	if !ok {
		m.setStatus("No task selected", true)
		return
	}
	updated, err := m.svc.ToggleComplete(task.ID)
	if err != nil {
		m.ignoreMissing(err)
		return
	}
	if updated.Completed {
		m.commit("Task completed • u undo")
		return
	}
	m.commit("Task reopened • u undo")
}

func (m *Model) startDeleteConfirm() {
	if m.focus != focusTasks {
		m.setStatus("Delete task: switch focus to tasks (Tab)", false)
		return
	}
	task, ok := m.selectedTask()
	if !ok {
		m.setStatus("No task selected", true)
		return
	}
	m.confirmID = task.ID
	m.confirmName = task.Text
	m.mode = modeConfirmDelete
}

func (m *Model) confirmDelete() {
	if err := m.svc.Delete(m.confirmID); err != nil {
		m.ignoreMissing(err)
	} else {
		m.commit("Task deleted • u undo")
	}
	m.mode = modeNormal
	m.confirmID = ""
	m.confirmName = ""
	m.ensureSelection()
}

func (m *Model) startClearConfirm() {
	stats := query.Stats(m.svc.List())
	if stats.Completed == 0 {
		m.setStatus("No completed tasks to clear", false)
		return
	}
	m.confirmCount = stats.Completed
	m.mode = modeConfirmClear
}

func (m *Model) confirmClear() {
	n, err := m.svc.ClearCompleted()
	m.mode = modeNormal
	m.confirmCount = 0
	if err != nil {
		m.setError(err)
		return
	}
	m.taskCursor = 0
	m.commit(fmt.Sprintf("%d completed tasks cleared • u undo", n))
}

func (m *Model) undo() {
	if err := m.svc.Undo(); err != nil {
		if errors.Is(err, app.ErrNothingToUndo) {
			m.setStatus("Nothing to undo", false)
			return
		}
		m.setError(err)
		return
	}
	m.commit("Undone")
}

func (m *Model) cycleFilter() {
	switch m.view.Status {
	case model.StatusAll:
		m.view.Status = model.StatusActive
	case model.StatusActive:
		m.view.Status = model.StatusCompleted
	default:
		m.view.Status = model.StatusAll
	}
	m.taskCursor = 0
	m.saveView()
	m.setStatus(fmt.Sprintf("Filter: %s", filterLabel(m.view.Status)), false)
}

// commit reports the outcome of a service mutation. The change is already in
// memory; a failed write only downgrades the status to a warning.
func (m *Model) commit(success string) {
	m.ensureSelection()
	if err := m.svc.LastPersistError(); err != nil {
		m.setError(fmt.Errorf("change applied, but saving failed: %w", err))
		return
	}
	m.setStatus(success, false)
}

func (m *Model) handleEvent(ev app.Event) {
	if ev.Kind != app.EventReplaced {
		return
	}
	m.ensureSelection()
	m.setStatus("Reloaded tasks changed outside this window", false)
}

func (m *Model) forwardEvent(ev app.Event) {
	select {
	case m.events <- ev:
	default:
	}
}

func (m *Model) waitForEvent() tea.Cmd {
	ch := m.events
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

func (m *Model) waitForNotification() tea.Cmd {
	if m.notifications == nil {
		return nil
	}
	ch := m.notifications
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return notificationMsg(n)
	}
}

func (m *Model) saveView() {
	if m.views == nil {
		return
	}
	if err := m.views.SaveView(m.view); err != nil {
		m.log.Warn("failed to save view state", zap.Error(err))
	}
}

func (m *Model) ignoreMissing(err error) {
	if errors.Is(err, app.ErrTaskNotFound) {
		m.ensureSelection()
		return
	}
	m.setError(err)
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
	m.statusSeq++
	if isErr {
		m.dismissPending = true
	}
}

func (m *Model) setError(err error) {
	var verr *app.ValidationError
	if errors.As(err, &verr) {
		m.setStatus(verr.Reason, true)
		return
	}
	m.setStatus(err.Error(), true)
}

func (m *Model) restoreCategoryCursor() {
	for i, c := range m.categories() {
		if c == m.view.Category {
			m.catCursor = i
			return
		}
	}
	m.catCursor = 0
}

func (m *Model) ensureSelection() {
	cats := m.categories()
	m.catCursor = clamp(m.catCursor, 0, len(cats)-1)

	tasks := m.visibleTasks()
	if len(tasks) == 0 {
		m.taskCursor = 0
		return
	}
	m.taskCursor = clamp(m.taskCursor, 0, len(tasks)-1)
}

// categories lists the "all" entry, the configured categories and any other
// category in use, plus the active filter even if no task carries it.
func (m *Model) categories() []string {
	out := []string{model.CategoryAll}
	cats := query.Categories(m.svc.List(), m.suggested)
	found := m.view.Category == model.CategoryAll
	for _, c := range cats {
		if c == m.view.Category {
			found = true
		}
		out = append(out, c)
	}
	if !found {
		out = append(out, m.view.Category)
	}
	return out
}

func (m *Model) visibleTasks() []model.Task {
	out := []model.Task{}
	for t := range query.View(m.svc.List(), query.FromView(m.view)) {
		out = append(out, t)
	}
	return out
}

func (m *Model) selectedTask() (model.Task, bool) {
	tasks := m.visibleTasks()
	if len(tasks) == 0 {
		return model.Task{}, false
	}
	if m.taskCursor < 0 || m.taskCursor >= len(tasks) {
		m.taskCursor = 0
	}
	return tasks[m.taskCursor], true
}

func (m *Model) isVisible(taskID string) bool {
	for _, t := range m.visibleTasks() {
		if t.ID == taskID {
			return true
		}
	}
	return false
}

func (m *Model) indexOfTask(taskID string) int {
	tasks := m.visibleTasks()
	for i, t := range tasks {
		if t.ID == taskID {
			return i
		}
	}
	return 0
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= 1 {
		return "…"
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}

func clamp(v, min, max int) int {
	if max < min {
		return min
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
