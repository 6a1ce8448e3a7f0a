package calendar

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasklist/model"
)

var now = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func day(y int, m time.Month, d int) *time.Time {
	v := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &v
}

func TestWriteExportsDatedTasks(t *testing.T) {
	remind := time.Date(2026, 3, 12, 8, 0, 0, 0, time.UTC)
	tasks := []model.Task{
		{
			ID: "t1", Text: "Ship report, v2; final", Priority: model.PriorityHigh, Category: "work",
			CreatedAt: now, FromDate: day(2026, 3, 11), DueDate: day(2026, 3, 13), Reminder: &remind,
		},
		{ID: "t2", Text: "No due date", CreatedAt: now},
		{ID: "t3", Text: "Done already", Completed: true, CreatedAt: now, DueDate: day(2026, 3, 14)},
	}

	var b strings.Builder
	n, err := Write(&b, tasks, now, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	out := b.String()
	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR\r\n"))
	assert.True(t, strings.HasSuffix(out, "END:VCALENDAR\r\n"))
	for _, want := range []string{
		"UID:task-t1@tasklist",
		"DTSTAMP:20260310T093000Z",
		`SUMMARY:Ship report\, v2\; final`,
		"DTSTART;VALUE=DATE:20260311",
		"DTEND;VALUE=DATE:20260314",
		"CATEGORIES:work",
		"PRIORITY:1",
		"BEGIN:VALARM",
		"TRIGGER;VALUE=DATE-TIME:20260312T080000Z",
	} {
		assert.Contains(t, out, want+"\r\n")
	}
	assert.NotContains(t, out, "No due date")
	assert.NotContains(t, out, "Done already")
}

func TestWriteCompletedTasksHaveNoAlarm(t *testing.T) {
	remind := time.Date(2026, 3, 12, 8, 0, 0, 0, time.UTC)
	tasks := []model.Task{{
		ID: "t1", Text: "finished", Completed: true, Priority: model.PriorityLow,
		CreatedAt: now, DueDate: day(2026, 3, 12), Reminder: &remind,
	}}

	var b strings.Builder
	n, err := Write(&b, tasks, now, Options{IncludeCompleted: true})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	out := b.String()
	assert.Contains(t, out, "DTSTART;VALUE=DATE:20260312\r\n")
	assert.Contains(t, out, "PRIORITY:9\r\n")
	assert.Contains(t, out, "X-TASKLIST-COMPLETED:TRUE\r\n")
	assert.NotContains(t, out, "VALARM")
}

func TestFoldLongLines(t *testing.T) {
	line := "SUMMARY:" + strings.Repeat("é", 60)
	folded := fold(line)
	for _, part := range strings.Split(folded, "\r\n") {
		assert.LessOrEqual(t, len(part), 75)
	}
	assert.Equal(t, line, strings.ReplaceAll(folded, "\r\n ", ""))
	assert.Equal(t, "short", fold("short"))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestWritePropagatesWriterError(t *testing.T) {
	_, err := Write(failingWriter{}, nil, now, Options{})
	assert.ErrorContains(t, err, "write calendar")
}
