package app

import (
	"errors"
	"fmt"
)

var (
	ErrTaskNotFound  = errors.New("task not found")
	ErrAmbiguousID   = errors.New("task id prefix is ambiguous")
	ErrNothingToUndo = errors.New("nothing to undo")

	ErrEmptyText          = errors.New("task text must not be empty")
	ErrTextTooLong        = errors.New("task text is too long")
	ErrInvalidPriority    = errors.New("invalid priority")
	ErrInvalidDate        = errors.New("invalid date")
	ErrFromDateInPast     = errors.New("start date is in the past")
	ErrDueBeforeFrom      = errors.New("due date is before start date")
	ErrReminderInPast     = errors.New("reminder is in the past")
	ErrReminderBeforeFrom = errors.New("reminder is before start date")
	ErrReminderAfterDue   = errors.New("reminder is after due date")
)

// ValidationError is a user-correctable input problem. Reason is meant to be
// shown to the user as is.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(err error, format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...), Err: err}
}

// NotFoundError reports an operation on an unknown task id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task not found: %s", e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrTaskNotFound }
