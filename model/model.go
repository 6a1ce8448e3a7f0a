package model

import (
	"strings"
	"time"
)

// StatusFilter represents which tasks should be shown by completion state.
type StatusFilter string

const (
	StatusAll       StatusFilter = "all"
	StatusActive    StatusFilter = "active"
	StatusCompleted StatusFilter = "completed"
)

// CategoryAll matches every category in a category filter.
const CategoryAll = "all"

// DefaultCategory is assigned when a task is created without one.
const DefaultCategory = "personal"

// Priority is a task priority.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority maps user input to a Priority. Empty input means medium.
func ParsePriority(raw string) (Priority, bool) {
	switch Priority(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return PriorityMedium, true
	case PriorityHigh:
		return PriorityHigh, true
	case PriorityMedium:
		return PriorityMedium, true
	case PriorityLow:
		return PriorityLow, true
	}
	return "", false
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// Task is an individual todo item.
//
// FromDate and DueDate hold midnight in the local zone of the day they name.
type Task struct {
	ID          string
	Text        string
	Completed   bool
	Priority    Priority
	Category    string
	CreatedAt   time.Time
	CompletedAt *time.Time
	FromDate    *time.Time
	DueDate     *time.Time
	Reminder    *time.Time
}

// Clone returns a copy that shares no pointers with t.
func (t Task) Clone() Task {
	out := t
	out.CompletedAt = cloneTime(t.CompletedAt)
	out.FromDate = cloneTime(t.FromDate)
	out.DueDate = cloneTime(t.DueDate)
	out.Reminder = cloneTime(t.Reminder)
	return out
}

// HasPendingReminder reports whether the task is open and its reminder is after now.
func (t Task) HasPendingReminder(now time.Time) bool {
	return !t.Completed && t.Reminder != nil && t.Reminder.After(now)
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// CloneTasks deep-copies a task slice.
func CloneTasks(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}

// Stats summarises completion of a task list.
type Stats struct {
	Total           int `json:"total"`
	Completed       int `json:"completed"`
	Pending         int `json:"pending"`
	ProgressPercent int `json:"progressPercent"`
}

// Notification is delivered to the presentation layer when a reminder fires.
type Notification struct {
	TaskID   string
	Text     string
	Category string
	Reminder time.Time
	FiredAt  time.Time
}

// ViewState stores presentation filters that should survive restarts.
type ViewState struct {
	Status   StatusFilter `json:"status,omitempty"`
	Category string       `json:"category,omitempty"`
	Search   string       `json:"search,omitempty"`
}

// NewViewState returns the unfiltered view.
func NewViewState() ViewState {
	return ViewState{Status: StatusAll, Category: CategoryAll}
}

// Normalize fills defaults and drops unknown status values.
func (v ViewState) Normalize() ViewState {
	switch v.Status {
	case StatusAll, StatusActive, StatusCompleted:
	default:
		v.Status = StatusAll
	}
	if strings.TrimSpace(v.Category) == "" {
		v.Category = CategoryAll
	}
	return v
}

// StartOfDay returns midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last representable instant of t's day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
