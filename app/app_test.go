package app

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"tasklist/clock"
	"tasklist/model"
	"tasklist/query"
	"tasklist/reminder"
)

// 2026-03-10 09:30 UTC
var testNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

type savedLists struct {
	mu    sync.Mutex
	saves [][]model.Task
	err   error
}

func (s *savedLists) Save(tasks []model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, model.CloneTasks(tasks))
	return s.err
}

func (s *savedLists) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves)
}

func (s *savedLists) last() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saves) == 0 {
		return nil
	}
	return s.saves[len(s.saves)-1]
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("task-%02d", n)
	}
}

func newTestService(t *testing.T) (*Service, *clock.FakeClock, *savedLists) {
	t.Helper()
	clk := clock.NewFakeClock(testNow)
	saved := &savedLists{}
	svc := NewService(nil, Options{
		Clock:     clk,
		Persister: saved,
		Location:  time.UTC,
		NewID:     sequentialIDs(),
	})
	return svc, clk, saved
}

type notifications struct {
	mu  sync.Mutex
	got []model.Notification
}

func (n *notifications) add(v model.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, v)
}

func (n *notifications) all() []model.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.Notification(nil), n.got...)
}

func withScheduler(svc *Service, clk clock.Clock) (*reminder.Scheduler, *notifications) {
	rec := &notifications{}
	sch := reminder.New(clk, svc, rec.add, nil)
	svc.SetScheduler(sch)
	return sch, rec
}

func mustCreateTask(t *testing.T, svc *Service, in CreateInput) model.Task {
	t.Helper()
	tk, err := svc.Create(in)
	if err != nil {
		t.Fatalf("create task %q failed: %v", in.Text, err)
	}
	return tk
}

func expectValidation(t *testing.T, err error, target error, reasonPart string) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if !strings.Contains(verr.Reason, reasonPart) {
		t.Fatalf("expected reason to mention %q, got %q", reasonPart, verr.Reason)
	}
}

func TestCreateInsertsAtHeadWithDefaults(t *testing.T) {
	svc, _, saved := newTestService(t)

	first := mustCreateTask(t, svc, CreateInput{Text: "  Buy milk  "})
	second := mustCreateTask(t, svc, CreateInput{Text: "Call mom", Priority: "HIGH", Category: "family"})

	tasks := svc.List()
	if len(tasks) != 2 || tasks[0].ID != second.ID || tasks[1].ID != first.ID {
		t.Fatalf("expected newest first, got %+v", tasks)
	}
	if first.Text != "Buy milk" {
		t.Fatalf("expected trimmed text, got %q", first.Text)
	}
	if first.Priority != model.PriorityMedium || first.Category != model.DefaultCategory {
		t.Fatalf("unexpected defaults: priority=%s category=%s", first.Priority, first.Category)
	}
	if first.Completed || first.CompletedAt != nil {
		t.Fatalf("new task must be open without completedAt: %+v", first)
	}
	if !first.CreatedAt.Equal(testNow) {
		t.Fatalf("expected createdAt %v, got %v", testNow, first.CreatedAt)
	}
	if second.Priority != model.PriorityHigh || second.Category != "family" {
		t.Fatalf("unexpected fields on second task: %+v", second)
	}
	if saved.count() != 2 {
		t.Fatalf("expected one save per create, got %d", saved.count())
	}
}

func TestCreateRejectsBadText(t *testing.T) {
	svc, _, saved := newTestService(t)

	for _, text := range []string{"", "   ", "\t\n"} {
		_, err := svc.Create(CreateInput{Text: text, Priority: "bogus", FromDate: "2000-01-01"})
		expectValidation(t, err, ErrEmptyText, "empty")
	}

	long := strings.Repeat("a", maxTextLength+1)
	_, err := svc.Create(CreateInput{Text: long, Priority: "bogus"})
	expectValidation(t, err, ErrTextTooLong, "too long")

	exact := strings.Repeat("é", maxTextLength)
	if _, err := svc.Create(CreateInput{Text: exact}); err != nil {
		t.Fatalf("expected 200 characters to be accepted, got %v", err)
	}

	if got := len(svc.List()); got != 1 {
		t.Fatalf("rejected creates must not change the list, got %d tasks", got)
	}
	if saved.count() != 1 {
		t.Fatalf("rejected creates must not persist, got %d saves", saved.count())
	}
}

func TestCreateRejectsUnknownPriority(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Create(CreateInput{Text: "x", Priority: "urgent"})
	expectValidation(t, err, ErrInvalidPriority, "Priority")
}

func TestCreateDateBoundaries(t *testing.T) {
	tests := []struct {
		name   string
		in     CreateInput
		target error
	}{
		{name: "from today", in: CreateInput{FromDate: "2026-03-10"}},
		{name: "from yesterday", in: CreateInput{FromDate: "2026-03-09"}, target: ErrFromDateInPast},
		{name: "due equals from", in: CreateInput{FromDate: "2026-03-12", DueDate: "2026-03-12"}},
		{name: "due one day before from", in: CreateInput{FromDate: "2026-03-12", DueDate: "2026-03-11"}, target: ErrDueBeforeFrom},
		{name: "reminder at end of due day", in: CreateInput{DueDate: "2026-03-12", Reminder: "2026-03-12T23:59:59.999999999Z"}},
		{name: "reminder last minute of due day", in: CreateInput{DueDate: "2026-03-12", Reminder: "2026-03-12T23:59"}},
		{name: "reminder one minute past due day", in: CreateInput{DueDate: "2026-03-12", Reminder: "2026-03-13T00:00"}, target: ErrReminderAfterDue},
		{name: "reminder in the past", in: CreateInput{Reminder: "2026-03-10T09:29"}, target: ErrReminderInPast},
		{name: "reminder before from day", in: CreateInput{FromDate: "2026-03-12", Reminder: "2026-03-11 18:00"}, target: ErrReminderBeforeFrom},
		{name: "reminder at start of from day", in: CreateInput{FromDate: "2026-03-12", Reminder: "2026-03-12T00:00"}},
		{name: "bad date", in: CreateInput{DueDate: "12/03/2026"}, target: ErrInvalidDate},
		{name: "bad reminder", in: CreateInput{Reminder: "tomorrow"}, target: ErrInvalidDate},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, _ := newTestService(t)
			tc.in.Text = "dated"
			_, err := svc.Create(tc.in)
			if tc.target == nil {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.target) {
				t.Fatalf("expected %v, got %v", tc.target, err)
			}
		})
	}
}

func TestCreateStoresDatesAtLocalMidnight(t *testing.T) {
	svc, _, _ := newTestService(t)
	tk := mustCreateTask(t, svc, CreateInput{Text: "dated", FromDate: "2026-03-11", DueDate: "2026-03-14", Reminder: "2026-03-13T08:15"})

	want := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	if tk.FromDate == nil || !tk.FromDate.Equal(want) {
		t.Fatalf("expected fromDate %v, got %v", want, tk.FromDate)
	}
	wantReminder := time.Date(2026, 3, 13, 8, 15, 0, 0, time.UTC)
	if tk.Reminder == nil || !tk.Reminder.Equal(wantReminder) {
		t.Fatalf("expected reminder %v, got %v", wantReminder, tk.Reminder)
	}
}

func TestToggleCompleteIsItsOwnInverse(t *testing.T) {
	svc, clk, _ := newTestService(t)
	tk := mustCreateTask(t, svc, CreateInput{Text: "Pay bills"})

	clk.Advance(time.Hour)
	done, err := svc.ToggleComplete(tk.ID)
	if err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if !done.Completed || done.CompletedAt == nil || !done.CompletedAt.Equal(testNow.Add(time.Hour)) {
		t.Fatalf("expected completed with completedAt=now, got %+v", done)
	}

	back, err := svc.ToggleComplete(tk.ID)
	if err != nil {
		t.Fatalf("second toggle failed: %v", err)
	}
	if back.Completed || back.CompletedAt != nil {
		t.Fatalf("expected original state after double toggle, got %+v", back)
	}

	if _, err := svc.ToggleComplete("missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestEditChangesTextOnly(t *testing.T) {
	svc, _, saved := newTestService(t)
	tk := mustCreateTask(t, svc, CreateInput{Text: "Draft", Priority: "low", Category: "work", DueDate: "2026-03-20"})

	updated, err := svc.Edit(tk.ID, "  Final  ")
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if updated.Text != "Final" {
		t.Fatalf("expected trimmed text, got %q", updated.Text)
	}
	if updated.Priority != tk.Priority || updated.Category != tk.Category || !updated.DueDate.Equal(*tk.DueDate) {
		t.Fatalf("edit must not touch other fields\nwant=%+v\ngot=%+v", tk, updated)
	}

	saves := saved.count()
	if _, err := svc.Edit(tk.ID, "Final"); err != nil {
		t.Fatalf("no-op edit failed: %v", err)
	}
	if saved.count() != saves {
		t.Fatalf("unchanged text must not persist again")
	}

	if _, err := svc.Edit(tk.ID, " "); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
	if _, err := svc.Edit("missing", "x"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestDeleteRemovesTaskAndCancelsReminder(t *testing.T) {
	svc, clk, _ := newTestService(t)
	sch, rec := withScheduler(svc, clk)

	keep := mustCreateTask(t, svc, CreateInput{Text: "keep", Reminder: "2026-03-10T09:40"})
	gone := mustCreateTask(t, svc, CreateInput{Text: "gone", Reminder: "2026-03-10T09:35"})
	if got := sch.Pending(); len(got) != 2 {
		t.Fatalf("expected two armed reminders, got %v", got)
	}

	if err := svc.Delete(gone.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	tasks := svc.List()
	if len(tasks) != 1 || tasks[0].ID != keep.ID {
		t.Fatalf("expected only %s left, got %+v", keep.ID, tasks)
	}
	if got := sch.Pending(); len(got) != 1 || got[0] != keep.ID {
		t.Fatalf("expected only keep armed, got %v", got)
	}
	sch.Cancel(gone.ID)

	clk.Advance(time.Hour)
	got := rec.all()
	if len(got) != 1 || got[0].TaskID != keep.ID {
		t.Fatalf("expected a single notification for keep, got %+v", got)
	}

	if err := svc.Delete(gone.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestCompletedTaskReminderIsSuppressed(t *testing.T) {
	svc, clk, _ := newTestService(t)
	_, rec := withScheduler(svc, clk)

	tk := mustCreateTask(t, svc, CreateInput{Text: "water plants", Reminder: "2026-03-10T10:00"})
	if _, err := svc.ToggleComplete(tk.ID); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	clk.Advance(time.Hour)
	if got := rec.all(); len(got) != 0 {
		t.Fatalf("completed task must not notify, got %+v", got)
	}
}

func TestReopenRearmsFutureReminder(t *testing.T) {
	svc, clk, _ := newTestService(t)
	sch, rec := withScheduler(svc, clk)

	tk := mustCreateTask(t, svc, CreateInput{Text: "stretch", Reminder: "2026-03-10T10:00"})
	if _, err := svc.ToggleComplete(tk.ID); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	clk.Advance(10 * time.Minute)
	if _, err := svc.ToggleComplete(tk.ID); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if got := sch.Pending(); len(got) != 1 {
		t.Fatalf("expected reminder re-armed, got %v", got)
	}
	clk.Advance(time.Hour)
	if got := rec.all(); len(got) != 1 || got[0].Text != "stretch" {
		t.Fatalf("expected one notification, got %+v", got)
	}
}

func TestStatsScenario(t *testing.T) {
	svc, _, _ := newTestService(t)
	tk := mustCreateTask(t, svc, CreateInput{Text: "Buy milk"})

	want := model.Stats{Total: 1, Completed: 0, Pending: 1, ProgressPercent: 0}
	if got := query.Stats(svc.List()); got != want {
		t.Fatalf("unexpected stats\nwant=%+v\ngot=%+v", want, got)
	}

	if _, err := svc.ToggleComplete(tk.ID); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	want = model.Stats{Total: 1, Completed: 1, Pending: 0, ProgressPercent: 100}
	if got := query.Stats(svc.List()); got != want {
		t.Fatalf("unexpected stats\nwant=%+v\ngot=%+v", want, got)
	}
}

func TestClearCompletedWithNothingCompletedIsNoop(t *testing.T) {
	svc, _, saved := newTestService(t)
	mustCreateTask(t, svc, CreateInput{Text: "A"})
	mustCreateTask(t, svc, CreateInput{Text: "B"})
	saves := saved.count()

	n, err := svc.ClearCompleted()
	if err != nil || n != 0 {
		t.Fatalf("expected (0, nil), got (%d, %v)", n, err)
	}
	if got := len(svc.List()); got != 2 {
		t.Fatalf("expected list unchanged with 2 tasks, got %d", got)
	}
	if saved.count() != saves {
		t.Fatalf("no-op clear must not persist")
	}
	if err := svc.Undo(); err != nil {
		t.Fatalf("undo should revert the last create, got %v", err)
	}
	if got := len(svc.List()); got != 1 {
		t.Fatalf("no-op clear must not push undo, got %d tasks after undo", got)
	}
}

func TestClearCompletedRemovesOnlyCompleted(t *testing.T) {
	svc, _, saved := newTestService(t)
	a := mustCreateTask(t, svc, CreateInput{Text: "A"})
	b := mustCreateTask(t, svc, CreateInput{Text: "B"})
	c := mustCreateTask(t, svc, CreateInput{Text: "C"})
	for _, id := range []string{a.ID, c.ID} {
		if _, err := svc.ToggleComplete(id); err != nil {
			t.Fatalf("toggle failed: %v", err)
		}
	}

	n, err := svc.ClearCompleted()
	if err != nil || n != 2 {
		t.Fatalf("expected 2 removed, got (%d, %v)", n, err)
	}
	tasks := svc.List()
	if len(tasks) != 1 || tasks[0].ID != b.ID {
		t.Fatalf("expected only B left, got %+v", tasks)
	}
	if last := saved.last(); len(last) != 1 || last[0].ID != b.ID {
		t.Fatalf("expected persisted list to match, got %+v", last)
	}
}

func TestPersistenceFailureIsNotFatal(t *testing.T) {
	saved := &savedLists{err: errors.New("disk full")}
	core, logs := observer.New(zapcore.DebugLevel)
	svc := NewService(nil, Options{
		Clock:     clock.NewFakeClock(testNow),
		Persister: saved,
		Logger:    zap.New(core),
		Location:  time.UTC,
		NewID:     sequentialIDs(),
	})

	var events []Event
	unsubscribe := svc.Subscribe(func(ev Event) { events = append(events, ev) })

	tk, err := svc.Create(CreateInput{Text: "survives"})
	if err != nil {
		t.Fatalf("create must succeed despite save failure, got %v", err)
	}
	if got := svc.List(); len(got) != 1 || got[0].ID != tk.ID {
		t.Fatalf("task must stay in memory, got %+v", got)
	}
	if svc.LastPersistError() == nil {
		t.Fatalf("expected LastPersistError to report the failure")
	}
	if len(events) != 1 || events[0].Kind != EventCreated || events[0].PersistErr == nil {
		t.Fatalf("expected created event carrying the persist error, got %+v", events)
	}
	if n := logs.FilterLevelExact(zapcore.WarnLevel).Len(); n != 1 {
		t.Fatalf("expected one warn entry per failed write-through, got %d", n)
	}

	saved.err = nil
	unsubscribe()
	if _, err := svc.Edit(tk.ID, "saved now"); err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if svc.LastPersistError() != nil {
		t.Fatalf("expected LastPersistError cleared after a good save, got %v", svc.LastPersistError())
	}
	if len(events) != 1 {
		t.Fatalf("unsubscribed observer must not be called, got %d events", len(events))
	}
}

func TestSearchCombinedWithStatusFilter(t *testing.T) {
	svc, _, _ := newTestService(t)
	todoMilk := mustCreateTask(t, svc, CreateInput{Text: "Buy milk", Category: "shopping"})
	doneMilk := mustCreateTask(t, svc, CreateInput{Text: "Milk the cow", Category: "farm"})
	mustCreateTask(t, svc, CreateInput{Text: "Read book"})
	if _, err := svc.ToggleComplete(doneMilk.ID); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}

	var all []model.Task
	for tk := range query.View(svc.List(), query.Query{Status: model.StatusAll, Search: "MILK"}) {
		all = append(all, tk)
	}
	if len(all) != 2 || all[0].ID != doneMilk.ID || all[1].ID != todoMilk.ID {
		t.Fatalf("expected both milk tasks newest first, got %+v", all)
	}

	var active []model.Task
	for tk := range query.View(svc.List(), query.Query{Status: model.StatusActive, Search: "milk"}) {
		active = append(active, tk)
	}
	if len(active) != 1 || active[0].ID != todoMilk.ID {
		t.Fatalf("expected only open milk task, got %+v", active)
	}
}

func TestUndoRevertsEveryMutation(t *testing.T) {
	svc, _, saved := newTestService(t)

	a := mustCreateTask(t, svc, CreateInput{Text: "A"})
	b := mustCreateTask(t, svc, CreateInput{Text: "B"})
	if _, err := svc.Edit(a.ID, "A1"); err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if _, err := svc.ToggleComplete(a.ID); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if err := svc.Delete(b.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := svc.ClearCompleted(); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if got := len(svc.List()); got != 0 {
		t.Fatalf("expected empty list, got %d", got)
	}

	steps := []func(){
		func() {
			if got := svc.List(); len(got) != 1 || got[0].ID != a.ID {
				t.Fatalf("expected A back after undo clear, got %+v", got)
			}
		},
		func() {
			if got := svc.List(); len(got) != 2 || got[0].ID != b.ID {
				t.Fatalf("expected B back at head after undo delete, got %+v", got)
			}
		},
		func() {
			tk, _ := svc.Task(a.ID)
			if tk.Completed || tk.CompletedAt != nil {
				t.Fatalf("expected A open after undo toggle, got %+v", tk)
			}
		},
		func() {
			tk, _ := svc.Task(a.ID)
			if tk.Text != "A" {
				t.Fatalf("expected original text after undo edit, got %q", tk.Text)
			}
		},
		func() {
			if got := len(svc.List()); got != 1 {
				t.Fatalf("expected 1 task after undo create B, got %d", got)
			}
		},
		func() {
			if got := len(svc.List()); got != 0 {
				t.Fatalf("expected 0 tasks after undo create A, got %d", got)
			}
		},
	}
	for i, check := range steps {
		if err := svc.Undo(); err != nil {
			t.Fatalf("undo %d failed: %v", i, err)
		}
		check()
	}

	if err := svc.Undo(); !errors.Is(err, ErrNothingToUndo) {
		t.Fatalf("expected ErrNothingToUndo after consuming stack, got %v", err)
	}
	if last := saved.last(); len(last) != 0 {
		t.Fatalf("undo must persist the restored list, got %+v", last)
	}
}

func TestUndoStackLimit20(t *testing.T) {
	svc, _, _ := newTestService(t)

	for i := 0; i < 25; i++ {
		if _, err := svc.Create(CreateInput{Text: "Task"}); err != nil {
			t.Fatalf("create task %d failed: %v", i, err)
		}
	}
	for i := 0; i < 20; i++ {
		if err := svc.Undo(); err != nil {
			t.Fatalf("undo %d failed: %v", i, err)
		}
	}
	if got := len(svc.List()); got != 5 {
		t.Fatalf("expected 5 tasks remaining after undoing capped stack, got %d", got)
	}
	if err := svc.Undo(); !errors.Is(err, ErrNothingToUndo) {
		t.Fatalf("expected ErrNothingToUndo after consuming capped stack, got %v", err)
	}
}

func TestUndoRestoresCancelledReminder(t *testing.T) {
	svc, clk, _ := newTestService(t)
	sch, rec := withScheduler(svc, clk)

	tk := mustCreateTask(t, svc, CreateInput{Text: "ping", Reminder: "2026-03-10T10:00"})
	if err := svc.Delete(tk.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if len(sch.Pending()) != 0 {
		t.Fatalf("expected no pending reminders after delete")
	}
	if err := svc.Undo(); err != nil {
		t.Fatalf("undo failed: %v", err)
	}
	if got := sch.Pending(); len(got) != 1 || got[0] != tk.ID {
		t.Fatalf("expected reminder re-armed after undo, got %v", got)
	}
	clk.Advance(time.Hour)
	if len(rec.all()) != 1 {
		t.Fatalf("expected restored reminder to fire once, got %+v", rec.all())
	}
}

func TestStartRearmsLoadedTasks(t *testing.T) {
	clk := clock.NewFakeClock(testNow)
	future := testNow.Add(time.Hour)
	past := testNow.Add(-time.Hour)
	loaded := []model.Task{
		{ID: "future", Text: "future", Priority: model.PriorityLow, Category: "work", Reminder: &future},
		{ID: "missed", Text: "missed", Reminder: &past},
		{ID: "future", Text: "duplicate id"},
		{ID: "", Text: "no id"},
	}
	svc := NewService(loaded, Options{Clock: clk, Location: time.UTC})
	_, rec := withScheduler(svc, clk)

	if got := len(svc.List()); got != 2 {
		t.Fatalf("expected invalid and duplicate records dropped, got %d tasks", got)
	}
	missed, _ := svc.Task("missed")
	if missed.Priority != model.PriorityMedium || missed.Category != model.DefaultCategory {
		t.Fatalf("expected defaults filled on load, got %+v", missed)
	}

	if armed := svc.Start(); armed != 1 {
		t.Fatalf("expected 1 reminder armed, got %d", armed)
	}
	clk.Advance(2 * time.Hour)
	if got := rec.all(); len(got) != 1 || got[0].TaskID != "future" {
		t.Fatalf("expected only the future reminder, got %+v", got)
	}
}

func TestResolveByPrefix(t *testing.T) {
	svc := NewService([]model.Task{
		{ID: "abc123", Text: "one"},
		{ID: "abd456", Text: "two"},
	}, Options{Location: time.UTC})

	tk, err := svc.Resolve("abc")
	if err != nil || tk.ID != "abc123" {
		t.Fatalf("expected abc123, got %+v err=%v", tk, err)
	}
	if _, err := svc.Resolve("ab"); !errors.Is(err, ErrAmbiguousID) {
		t.Fatalf("expected ErrAmbiguousID, got %v", err)
	}
	if _, err := svc.Resolve("zzz"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if _, err := svc.Resolve(""); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound for empty ref, got %v", err)
	}
}

func TestReplaceSwapsListWithoutPersisting(t *testing.T) {
	svc, clk, saved := newTestService(t)
	sch, _ := withScheduler(svc, clk)
	old := mustCreateTask(t, svc, CreateInput{Text: "old", Reminder: "2026-03-10T10:00"})
	saves := saved.count()

	var kinds []EventKind
	svc.Subscribe(func(ev Event) { kinds = append(kinds, ev.Kind) })

	at := testNow.Add(2 * time.Hour)
	svc.Replace([]model.Task{{ID: "ext", Text: "from another process", Reminder: &at}})

	if got := svc.List(); len(got) != 1 || got[0].ID != "ext" {
		t.Fatalf("expected replaced list, got %+v", got)
	}
	if got := sch.Pending(); len(got) != 1 || got[0] != "ext" {
		t.Fatalf("expected reminders to follow the new list, got %v", got)
	}
	if _, ok := svc.Task(old.ID); ok {
		t.Fatalf("old task should be gone")
	}
	if saved.count() != saves {
		t.Fatalf("replace must not write back")
	}
	if len(kinds) != 1 || kinds[0] != EventReplaced {
		t.Fatalf("expected a replaced event, got %v", kinds)
	}
}

func TestUndoAfterReplaceKeepsExternalTasks(t *testing.T) {
	svc, _, saved := newTestService(t)
	mine := mustCreateTask(t, svc, CreateInput{Text: "mine"})

	theirs := model.Task{ID: "theirs", Text: "added elsewhere", CreatedAt: testNow}
	svc.Replace([]model.Task{theirs, mine})

	if err := svc.Undo(); !errors.Is(err, ErrNothingToUndo) {
		t.Fatalf("expected ErrNothingToUndo after an external reload, got %v", err)
	}
	if got := svc.List(); len(got) != 2 || got[0].ID != "theirs" || got[1].ID != mine.ID {
		t.Fatalf("expected both tasks to remain, got %+v", got)
	}
	last := saved.last()
	if len(last) != 1 || last[0].ID != mine.ID {
		t.Fatalf("expected the last save to be the create, got %+v", last)
	}

	// History starts again from the reloaded list.
	if err := svc.Delete("theirs"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := svc.Undo(); err != nil {
		t.Fatalf("undo failed: %v", err)
	}
	if got := saved.last(); len(got) != 2 || got[0].ID != "theirs" {
		t.Fatalf("expected undo to restore the reloaded list, got %+v", got)
	}
}
