// Package query derives filtered views and statistics from a task list.
package query

import (
	"iter"
	"math"
	"strings"

	"tasklist/model"
)

// Query selects tasks by completion status, category and a search term.
type Query struct {
	Status   model.StatusFilter
	Category string
	Search   string
}

// FromView builds a Query from persisted presentation filters.
func FromView(v model.ViewState) Query {
	return Query{Status: v.Status, Category: v.Category, Search: v.Search}
}

// View yields the tasks matching q in their original order. The sequence is
// restartable and has no side effects; tasks is not copied, so callers must
// not mutate it while ranging.
func View(tasks []model.Task, q Query) iter.Seq[model.Task] {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	return func(yield func(model.Task) bool) {
		for _, t := range tasks {
			if !matchesStatus(q.Status, t.Completed) {
				continue
			}
			if search != "" && !strings.Contains(strings.ToLower(t.Text), search) {
				continue
			}
			if !matchesCategory(q.Category, t.Category) {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

// Stats counts total, completed and pending tasks.
func Stats(tasks []model.Task) model.Stats {
	s := model.Stats{Total: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			s.Completed++
		}
	}
	s.Pending = s.Total - s.Completed
	if s.Total > 0 {
		s.ProgressPercent = int(math.Round(100 * float64(s.Completed) / float64(s.Total)))
	}
	return s
}

// Categories lists the distinct categories in use, suggested ones first in
// their given order, then the rest in order of first appearance.
func Categories(tasks []model.Task, suggested []string) []string {
	used := make(map[string]bool)
	for _, t := range tasks {
		used[t.Category] = true
	}

	out := make([]string, 0, len(used))
	seen := make(map[string]bool)
	for _, c := range suggested {
		if used[c] && !seen[c] {
			out = append(out, c)
			seen[c] = true
		}
	}
	for _, t := range tasks {
		if !seen[t.Category] {
			out = append(out, t.Category)
			seen[t.Category] = true
		}
	}
	return out
}

func matchesStatus(filter model.StatusFilter, completed bool) bool {
	switch filter {
	case model.StatusActive:
		return !completed
	case model.StatusCompleted:
		return completed
	default:
		return true
	}
}

func matchesCategory(filter, category string) bool {
	filter = strings.TrimSpace(filter)
	return filter == "" || filter == model.CategoryAll || filter == category
}
