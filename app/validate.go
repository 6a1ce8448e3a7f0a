package app

import (
	"strings"
	"time"
	"unicode/utf8"

	"tasklist/model"
)

const maxTextLength = 200

var reminderLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// CreateInput carries raw user input for a new task.
type CreateInput struct {
	Text     string
	Priority string
	Category string
	FromDate string
	DueDate  string
	Reminder string
}

type validTask struct {
	text     string
	priority model.Priority
	category string
	fromDate *time.Time
	dueDate  *time.Time
	reminder *time.Time
}

// validateCreate checks in against now. Rules are applied in a fixed order and
// the first violation is returned.
func validateCreate(in CreateInput, now time.Time) (validTask, error) {
	var v validTask
	loc := now.Location()

	text, err := validateText(in.Text)
	if err != nil {
		return v, err
	}
	v.text = text

	priority, ok := model.ParsePriority(in.Priority)
	if !ok {
		return v, invalid(ErrInvalidPriority, "Priority must be high, medium or low")
	}
	v.priority = priority

	v.category = strings.TrimSpace(in.Category)
	if v.category == "" || v.category == model.CategoryAll {
		v.category = model.DefaultCategory
	}

	today := model.StartOfDay(now)
	if v.fromDate, err = parseDate(in.FromDate, loc); err != nil {
		return v, invalid(ErrInvalidDate, "Start date must be a date like 2006-01-02")
	}
	if v.fromDate != nil && v.fromDate.Before(today) {
		return v, invalid(ErrFromDateInPast, "Start date cannot be in the past")
	}

	if v.dueDate, err = parseDate(in.DueDate, loc); err != nil {
		return v, invalid(ErrInvalidDate, "Due date must be a date like 2006-01-02")
	}
	if v.dueDate != nil && v.fromDate != nil && v.dueDate.Before(*v.fromDate) {
		return v, invalid(ErrDueBeforeFrom, "Due date cannot be before the start date")
	}

	if v.reminder, err = parseReminder(in.Reminder, loc); err != nil {
		return v, invalid(ErrInvalidDate, "Reminder must be a date and time like 2006-01-02T15:04")
	}
	if v.reminder != nil {
		if v.reminder.Before(now) {
			return v, invalid(ErrReminderInPast, "Reminder cannot be in the past")
		}
		if v.fromDate != nil && v.reminder.Before(model.StartOfDay(*v.fromDate)) {
			return v, invalid(ErrReminderBeforeFrom, "Reminder cannot be before the start date")
		}
		if v.dueDate != nil && v.reminder.After(model.EndOfDay(*v.dueDate)) {
			return v, invalid(ErrReminderAfterDue, "Reminder cannot be after the due date")
		}
	}
	return v, nil
}

func validateText(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", invalid(ErrEmptyText, "Task cannot be empty")
	}
	if utf8.RuneCountInString(text) > maxTextLength {
		return "", invalid(ErrTextTooLong, "Task is too long (max %d characters)", maxTextLength)
	}
	return text, nil
}

func parseDate(raw string, loc *time.Location) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseReminder(raw string, loc *time.Location) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range reminderLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return &t, nil
		}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
