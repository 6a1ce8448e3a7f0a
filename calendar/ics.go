// Package calendar exports dated tasks as an iCalendar feed.
package calendar

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"tasklist/model"
)

const (
	icsDateLayout  = "20060102"
	icsStampLayout = "20060102T150405Z"
)

type Options struct {
	// IncludeCompleted keeps finished tasks in the feed. Their alarms are
	// always dropped.
	IncludeCompleted bool
}

// Write renders one all-day VEVENT per task with a due date. The event spans
// the start date (or the due date when there is none) through the due date.
// An open task with a reminder gets a display VALARM at the reminder time.
// It returns the number of events written.
func Write(w io.Writer, tasks []model.Task, now time.Time, opts Options) (int, error) {
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//tasklist//Task Export//EN",
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
	}
	count := 0
	for _, t := range tasks {
		if t.DueDate == nil {
			continue
		}
		if t.Completed && !opts.IncludeCompleted {
			continue
		}
		lines = append(lines, event(t, now)...)
		count++
	}
	lines = append(lines, "END:VCALENDAR", "")

	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteString("\r\n")
		}
		b.WriteString(fold(line))
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return 0, fmt.Errorf("write calendar: %w", err)
	}
	return count, nil
}

func event(t model.Task, now time.Time) []string {
	start := *t.DueDate
	if t.FromDate != nil && t.FromDate.Before(start) {
		start = *t.FromDate
	}
	end := t.DueDate.AddDate(0, 0, 1)

	lines := []string{
		"BEGIN:VEVENT",
		"UID:" + escapeICSText(fmt.Sprintf("task-%s@tasklist", t.ID)),
		"DTSTAMP:" + now.UTC().Format(icsStampLayout),
		"CREATED:" + t.CreatedAt.UTC().Format(icsStampLayout),
		"SUMMARY:" + escapeICSText(t.Text),
		"DTSTART;VALUE=DATE:" + start.Format(icsDateLayout),
		"DTEND;VALUE=DATE:" + end.Format(icsDateLayout),
		"CATEGORIES:" + escapeICSText(t.Category),
		fmt.Sprintf("PRIORITY:%d", icsPriority(t.Priority)),
		"TRANSP:TRANSPARENT",
	}
	if t.Completed {
		lines = append(lines, "X-TASKLIST-COMPLETED:TRUE")
	}
	if t.Reminder != nil && !t.Completed {
		lines = append(lines,
			"BEGIN:VALARM",
			"ACTION:DISPLAY",
			"DESCRIPTION:"+escapeICSText(t.Text),
			"TRIGGER;VALUE=DATE-TIME:"+t.Reminder.UTC().Format(icsStampLayout),
			"END:VALARM",
		)
	}
	return append(lines, "END:VEVENT")
}

// RFC 5545 maps 1 to highest and 9 to lowest.
func icsPriority(p model.Priority) int {
	switch p {
	case model.PriorityHigh:
		return 1
	case model.PriorityLow:
		return 9
	}
	return 5
}

func escapeICSText(s string) string {
	repl := strings.NewReplacer(
		"\\", "\\\\",
		";", "\\;",
		",", "\\,",
		"\r\n", "\\n",
		"\n", "\\n",
		"\r", "\\n",
	)
	return repl.Replace(s)
}

// fold splits content lines longer than 75 octets without breaking a UTF-8
// sequence.
func fold(line string) string {
	const limit = 75
	if len(line) <= limit {
		return line
	}
	var b strings.Builder
	width := 0
	for _, r := range line {
		size := utf8.RuneLen(r)
		if width+size > limit {
			// Continuation lines start with a space, which counts.
			b.WriteString("\r\n ")
			width = 1
		}
		b.WriteRune(r)
		width += size
	}
	return b.String()
}
