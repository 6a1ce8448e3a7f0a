// Package reminder arms one-shot reminder timers for tasks.
//
// The scheduler never keeps task data. It maps a task id to at most one
// pending timer and resolves the id against a Resolver when the timer fires,
// so edits made after arming are reflected in the notification and deleted or
// completed tasks are never announced.
package reminder

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"tasklist/clock"
	"tasklist/model"
)

// Resolver looks up the current state of a task.
type Resolver interface {
	Task(id string) (model.Task, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(id string) (model.Task, bool)

func (f ResolverFunc) Task(id string) (model.Task, bool) { return f(id) }

type handle struct {
	timer clock.Timer
	gen   uint64
}

type Scheduler struct {
	clock    clock.Clock
	resolver Resolver
	notify   func(model.Notification)
	log      *zap.Logger

	mu      sync.Mutex
	gen     uint64
	pending map[string]*handle
}

// New returns a scheduler. notify runs on the timer's goroutine.
func New(clk clock.Clock, resolver Resolver, notify func(model.Notification), log *zap.Logger) *Scheduler {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if notify == nil {
		notify = func(model.Notification) {}
	}
	return &Scheduler{
		clock:    clk,
		resolver: resolver,
		notify:   notify,
		log:      log,
		pending:  make(map[string]*handle),
	}
}

// Arm schedules task's reminder, replacing any earlier one for the same id.
// Completed tasks, tasks without a reminder and reminders at or before now
// are ignored. It reports whether a timer was armed.
func (s *Scheduler) Arm(task model.Task) bool {
	now := s.clock.Now()
	if !task.HasPendingReminder(now) {
		return false
	}
	at := *task.Reminder

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked(task.ID)
	s.gen++
	h := &handle{gen: s.gen}
	id := task.ID
	h.timer = s.clock.AfterFunc(at.Sub(now), func() { s.fire(id, h, at) })
	s.pending[id] = h

	s.log.Debug("reminder armed", zap.String("task", id), zap.Time("at", at))
	return true
}

// Cancel stops the reminder for id. Cancelling an unknown id is a no-op.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelLocked(id) {
		s.log.Debug("reminder cancelled", zap.String("task", id))
	}
}

// RearmAll arms every open task with a future reminder. Reminders already in
// the past are treated as missed and skipped. It returns the number armed.
func (s *Scheduler) RearmAll(tasks []model.Task) int {
	armed := 0
	for _, t := range tasks {
		if s.Arm(t) {
			armed++
		}
	}
	s.log.Info("reminders rearmed", zap.Int("armed", armed), zap.Int("tasks", len(tasks)))
	return armed
}

// Pending returns the ids with a live timer, sorted.
func (s *Scheduler) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.pending))
	for id := range s.pending {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Stop cancels every pending reminder.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.pending {
		s.cancelLocked(id)
	}
}

func (s *Scheduler) cancelLocked(id string) bool {
	h, ok := s.pending[id]
	if !ok {
		return false
	}
	h.timer.Stop()
	delete(s.pending, id)
	return true
}

func (s *Scheduler) fire(id string, h *handle, at time.Time) {
	s.mu.Lock()
	cur, ok := s.pending[id]
	if !ok || cur.gen != h.gen {
		// Superseded or cancelled after the timer had already started.
		s.mu.Unlock()
		return
	}
	delete(s.pending, id)
	s.mu.Unlock()

	if s.resolver == nil {
		return
	}
	task, ok := s.resolver.Task(id)
	if !ok {
		s.log.Debug("reminder dropped for missing task", zap.String("task", id))
		return
	}
	if task.Completed {
		s.log.Debug("reminder suppressed for completed task", zap.String("task", id))
		return
	}

	n := model.Notification{
		TaskID:   task.ID,
		Text:     task.Text,
		Category: task.Category,
		Reminder: at,
		FiredAt:  s.clock.Now(),
	}
	s.log.Info("reminder fired", zap.String("task", id))
	s.notify(n)
}
