package app

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tasklist/clock"
	"tasklist/model"
)

const undoStackLimit = 20

// Persister writes the full task list after every mutation.
type Persister interface {
	Save(tasks []model.Task) error
}

// Scheduler arms and cancels task reminders.
type Scheduler interface {
	Arm(task model.Task) bool
	Cancel(id string)
	RearmAll(tasks []model.Task) int
}

type EventKind string

const (
	EventCreated  EventKind = "created"
	EventToggled  EventKind = "toggled"
	EventEdited   EventKind = "edited"
	EventDeleted  EventKind = "deleted"
	EventCleared  EventKind = "cleared"
	EventUndone   EventKind = "undone"
	EventReplaced EventKind = "replaced"
)

// Event describes a change to the task list. PersistErr is set when the
// change is in memory but could not be written to the durable store.
type Event struct {
	Kind       EventKind
	TaskID     string
	Count      int
	PersistErr error
}

type Options struct {
	Clock     clock.Clock
	Persister Persister
	Logger    *zap.Logger
	// Location is the zone "today" is computed in. Defaults to time.Local.
	Location *time.Location
	NewID    func() string
}

// Service owns the ordered task list (newest first) and enforces its rules.
// Scheduler calls are made while holding mu; the scheduler never calls back
// into the service while holding its own lock. Persistence and observers run
// after mu is released.
type Service struct {
	clock     clock.Clock
	persister Persister
	log       *zap.Logger
	loc       *time.Location
	newID     func() string

	mu        sync.RWMutex
	tasks     []model.Task
	undo      [][]model.Task
	scheduler Scheduler

	subsMu  sync.Mutex
	subs    map[int]func(Event)
	nextSub int

	persistMu      sync.Mutex
	lastPersistErr error
}

// NewService creates a service with a copy of the provided tasks.
func NewService(tasks []model.Task, opts Options) *Service {
	s := &Service{
		clock:     opts.Clock,
		persister: opts.Persister,
		log:       opts.Logger,
		loc:       opts.Location,
		newID:     opts.NewID,
		tasks:     normalizeTasks(tasks),
		undo:      [][]model.Task{},
		scheduler: noopScheduler{},
		subs:      make(map[int]func(Event)),
	}
	if s.clock == nil {
		s.clock = clock.RealClock{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// SetScheduler attaches the reminder scheduler. It must be called before Start.
func (s *Service) SetScheduler(sch Scheduler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sch == nil {
		sch = noopScheduler{}
	}
	s.scheduler = sch
}

// Start arms reminders for the loaded tasks and returns how many were armed.
func (s *Service) Start() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduler.RearmAll(s.tasks)
}

// List returns a copy of all tasks, newest first.
func (s *Service) List() []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.CloneTasks(s.tasks)
}

// Task returns a task by id.
func (s *Service) Task(id string) (model.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.tasks[i].Clone(), true
	}
	return model.Task{}, false
}

// Resolve finds a task by full id or unique id prefix.
func (s *Service) Resolve(ref string) (model.Task, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.Task{}, &NotFoundError{ID: ref}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var match *model.Task
	for i := range s.tasks {
		t := &s.tasks[i]
		if t.ID == ref {
			return t.Clone(), nil
		}
		if strings.HasPrefix(t.ID, ref) {
			if match != nil {
				return model.Task{}, ErrAmbiguousID
			}
			match = t
		}
	}
	if match == nil {
		return model.Task{}, &NotFoundError{ID: ref}
	}
	return match.Clone(), nil
}

func (s *Service) Create(in CreateInput) (model.Task, error) {
	now := s.now()
	v, err := validateCreate(in, now)
	if err != nil {
		return model.Task{}, err
	}
	task := model.Task{
		ID:        s.newID(),
		Text:      v.text,
		Priority:  v.priority,
		Category:  v.category,
		CreatedAt: now,
		FromDate:  v.fromDate,
		DueDate:   v.dueDate,
		Reminder:  v.reminder,
	}

	s.mu.Lock()
	s.pushUndoLocked()
	s.tasks = append([]model.Task{task}, s.tasks...)
	s.scheduler.Arm(task)
	snapshot := model.CloneTasks(s.tasks)
	s.mu.Unlock()

	s.log.Debug("task created", zap.String("task", task.ID), zap.Bool("reminder", task.Reminder != nil))
	s.commit(snapshot, Event{Kind: EventCreated, TaskID: task.ID, Count: 1})
	return task.Clone(), nil
}

// ToggleComplete flips the completion state. Reopening a task re-arms its
// reminder if it is still in the future; completing it leaves the timer to
// be suppressed when it fires.
func (s *Service) ToggleComplete(id string) (model.Task, error) {
	now := s.now()

	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return model.Task{}, &NotFoundError{ID: id}
	}
	s.pushUndoLocked()
	t := &s.tasks[i]
	t.Completed = !t.Completed
	if t.Completed {
		t.CompletedAt = &now
	} else {
		t.CompletedAt = nil
		s.scheduler.Arm(*t)
	}
	updated := t.Clone()
	snapshot := model.CloneTasks(s.tasks)
	s.mu.Unlock()

	s.commit(snapshot, Event{Kind: EventToggled, TaskID: id, Count: 1})
	return updated, nil
}

// Edit replaces the text of a task. Other fields are left untouched.
func (s *Service) Edit(id, newText string) (model.Task, error) {
	text, err := validateText(newText)
	if err != nil {
		return model.Task{}, err
	}

	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return model.Task{}, &NotFoundError{ID: id}
	}
	if s.tasks[i].Text == text {
		updated := s.tasks[i].Clone()
		s.mu.Unlock()
		return updated, nil
	}
	s.pushUndoLocked()
	s.tasks[i].Text = text
	updated := s.tasks[i].Clone()
	snapshot := model.CloneTasks(s.tasks)
	s.mu.Unlock()

	s.commit(snapshot, Event{Kind: EventEdited, TaskID: id, Count: 1})
	return updated, nil
}

// Delete cancels the task's reminder and removes it.
func (s *Service) Delete(id string) error {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return &NotFoundError{ID: id}
	}
	s.scheduler.Cancel(id)
	s.pushUndoLocked()
	s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
	snapshot := model.CloneTasks(s.tasks)
	s.mu.Unlock()

	s.commit(snapshot, Event{Kind: EventDeleted, TaskID: id, Count: 1})
	return nil
}

// ClearCompleted removes every completed task and returns how many were
// removed. With nothing completed it changes nothing.
func (s *Service) ClearCompleted() (int, error) {
	s.mu.Lock()
	kept := make([]model.Task, 0, len(s.tasks))
	removed := 0
	for _, t := range s.tasks {
		if t.Completed {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	if removed == 0 {
		s.mu.Unlock()
		return 0, nil
	}
	for _, t := range s.tasks {
		if t.Completed {
			s.scheduler.Cancel(t.ID)
		}
	}
	s.pushUndoLocked()
	s.tasks = kept
	snapshot := model.CloneTasks(s.tasks)
	s.mu.Unlock()

	s.commit(snapshot, Event{Kind: EventCleared, Count: removed})
	return removed, nil
}

// Undo reverts the latest mutation from the undo stack and reschedules
// reminders to match the restored list.
func (s *Service) Undo() error {
	s.mu.Lock()
	if len(s.undo) == 0 {
		s.mu.Unlock()
		return ErrNothingToUndo
	}
	last := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	s.swapLocked(last)
	snapshot := model.CloneTasks(s.tasks)
	s.mu.Unlock()

	s.commit(snapshot, Event{Kind: EventUndone, Count: len(snapshot)})
	return nil
}

// Replace adopts a task list changed outside this process. It is not
// persisted again. Undo history is discarded, since every snapshot on it
// predates the external write.
func (s *Service) Replace(tasks []model.Task) {
	s.mu.Lock()
	s.undo = s.undo[:0]
	s.swapLocked(normalizeTasks(tasks))
	count := len(s.tasks)
	s.mu.Unlock()

	s.log.Info("task list replaced", zap.Int("count", count))
	s.emit(Event{Kind: EventReplaced, Count: count})
}

// Subscribe registers fn to be called after every change. The returned
// function removes the subscription.
func (s *Service) Subscribe(fn func(Event)) func() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		delete(s.subs, id)
	}
}

// LastPersistError returns the error of the most recent write-through, or
// nil if it succeeded.
func (s *Service) LastPersistError() error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	return s.lastPersistErr
}

func (s *Service) swapLocked(next []model.Task) {
	keep := make(map[string]bool, len(next))
	for _, t := range next {
		keep[t.ID] = true
	}
	for _, t := range s.tasks {
		if !keep[t.ID] {
			s.scheduler.Cancel(t.ID)
		}
	}
	s.tasks = next
	s.scheduler.RearmAll(s.tasks)
}

func (s *Service) commit(snapshot []model.Task, ev Event) {
	ev.PersistErr = s.persist(snapshot)
	s.emit(ev)
}

func (s *Service) persist(snapshot []model.Task) error {
	if s.persister == nil {
		return nil
	}
	err := s.persister.Save(snapshot)
	if err != nil {
		s.log.Warn("write-through failed; change kept in memory", zap.Error(err))
	}
	s.persistMu.Lock()
	s.lastPersistErr = err
	s.persistMu.Unlock()
	return err
}

func (s *Service) emit(ev Event) {
	s.subsMu.Lock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.subsMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (s *Service) now() time.Time {
	return s.clock.Now().In(s.loc)
}

func (s *Service) indexLocked(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Service) pushUndoLocked() {
	s.undo = append(s.undo, model.CloneTasks(s.tasks))
	if len(s.undo) > undoStackLimit {
		s.undo = s.undo[len(s.undo)-undoStackLimit:]
	}
}

func normalizeTasks(tasks []model.Task) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	seen := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if t.ID == "" || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		t = t.Clone()
		if !t.Priority.Valid() {
			t.Priority = model.PriorityMedium
		}
		if strings.TrimSpace(t.Category) == "" {
			t.Category = model.DefaultCategory
		}
		if !t.Completed {
			t.CompletedAt = nil
		}
		out = append(out, t)
	}
	return out
}

type noopScheduler struct{}

func (noopScheduler) Arm(model.Task) bool       { return false }
func (noopScheduler) Cancel(string)             {}
func (noopScheduler) RearmAll([]model.Task) int { return 0 }
