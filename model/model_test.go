package model

import (
	"testing"
	"time"
)

func TestParsePriority(t *testing.T) {
	cases := []struct {
		raw  string
		want Priority
		ok   bool
	}{
		{"", PriorityMedium, true},
		{"high", PriorityHigh, true},
		{"  LOW ", PriorityLow, true},
		{"Medium", PriorityMedium, true},
		{"urgent", "", false},
	}
	for _, tc := range cases {
		got, ok := ParsePriority(tc.raw)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ParsePriority(%q) = %q,%v; want %q,%v", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestDayBounds(t *testing.T) {
	loc := time.FixedZone("UTC-3", -3*3600)
	at := time.Date(2026, 2, 19, 15, 30, 12, 5, loc)

	start := StartOfDay(at)
	if !start.Equal(time.Date(2026, 2, 19, 0, 0, 0, 0, loc)) {
		t.Fatalf("unexpected start of day: %v", start)
	}
	end := EndOfDay(at)
	if !end.Add(time.Nanosecond).Equal(time.Date(2026, 2, 20, 0, 0, 0, 0, loc)) {
		t.Fatalf("unexpected end of day: %v", end)
	}
	if end.Day() != 19 {
		t.Fatalf("end of day crossed into next day: %v", end)
	}
}

func TestCloneDoesNotShareTimes(t *testing.T) {
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	orig := Task{ID: "t1", DueDate: &due}

	c := orig.Clone()
	*c.DueDate = c.DueDate.AddDate(0, 0, 1)

	if !orig.DueDate.Equal(due) {
		t.Fatalf("clone mutated original due date: %v", orig.DueDate)
	}
}

func TestHasPendingReminder(t *testing.T) {
	now := time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Minute)

	if (Task{}).HasPendingReminder(now) {
		t.Fatalf("task without reminder reported pending")
	}
	if !(Task{Reminder: &later}).HasPendingReminder(now) {
		t.Fatalf("future reminder not reported pending")
	}
	if (Task{Reminder: &now}).HasPendingReminder(now) {
		t.Fatalf("reminder at now should not be pending")
	}
	if (Task{Reminder: &later, Completed: true}).HasPendingReminder(now) {
		t.Fatalf("completed task reported pending")
	}
}

func TestViewStateNormalize(t *testing.T) {
	got := ViewState{Status: "bogus", Search: "milk"}.Normalize()
	want := ViewState{Status: StatusAll, Category: CategoryAll, Search: "milk"}
	if got != want {
		t.Fatalf("normalize mismatch\nwant=%+v\ngot=%+v", want, got)
	}
}
