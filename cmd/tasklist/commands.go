package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tasklist/app"
	"tasklist/calendar"
	"tasklist/model"
	"tasklist/query"
	"tasklist/store"
)

const shortIDLen = 8

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}

// withCore opens the store for the duration of fn.
func withCore(e *env, fn func(c *core) error) error {
	c, err := e.open(nil)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil {
			e.log.Warn("failed to close store", zap.Error(cerr))
		}
	}()
	if c.loadErr != nil {
		fmt.Fprintf(e.errOut, "warning: %v\n", c.loadErr)
	}
	return fn(c)
}

// persisted turns a failed write-through into a command error. The service
// keeps the change in memory, but a one-shot command would lose it on exit.
func persisted(c *core) error {
	if err := c.svc.LastPersistError(); err != nil {
		return fmt.Errorf("change not saved: %w", err)
	}
	return nil
}

func newAddCmd(e *env) *cobra.Command {
	var in app.CreateInput
	cmd := &cobra.Command{
		Use:   "add TEXT",
		Short: "Add a task",
		Example: `  tasklist add "Pay rent" --priority high --category home --due 2026-04-01
  tasklist add "Call the dentist" --remind "2026-03-12 09:00"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Text = strings.Join(args, " ")
			return withCore(e, func(c *core) error {
				task, err := c.svc.Create(in)
				if err != nil {
					return err
				}
				if err := persisted(c); err != nil {
					return err
				}
				fmt.Fprintf(e.out, "Added %s %s\n", shortID(task.ID), task.Text)
				if task.Reminder != nil {
					fmt.Fprintf(e.out, "Reminder at %s (run `tasklist watch` to be notified)\n", task.Reminder.Format("2006-01-02 15:04"))
				}
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&in.Priority, "priority", "p", "", "high, medium or low (default medium)")
	f.StringVarP(&in.Category, "category", "c", "", "category (default personal)")
	f.StringVar(&in.FromDate, "from", "", "start date YYYY-MM-DD")
	f.StringVar(&in.DueDate, "due", "", "due date YYYY-MM-DD")
	f.StringVar(&in.Reminder, "remind", "", `reminder "YYYY-MM-DD HH:MM"`)
	return cmd
}

func newListCmd(e *env) *cobra.Command {
	var (
		status   string
		category string
		search   string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := query.Query{
				Status:   model.StatusFilter(strings.ToLower(status)),
				Category: category,
				Search:   search,
			}
			switch q.Status {
			case model.StatusAll, model.StatusActive, model.StatusCompleted:
			default:
				return fmt.Errorf("unknown status %q (want all, active or completed)", status)
			}
			return withCore(e, func(c *core) error {
				var tasks []model.Task
				for t := range query.View(c.svc.List(), q) {
					tasks = append(tasks, t)
				}
				if asJSON {
					data, err := store.Encode(tasks)
					if err != nil {
						return err
					}
					_, err = e.out.Write(data)
					return err
				}
				if len(tasks) == 0 {
					fmt.Fprintln(e.out, "No tasks.")
					return nil
				}
				fmt.Fprintln(e.out, renderTable(tasks))
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&status, "status", string(model.StatusAll), "all, active or completed")
	f.StringVar(&category, "category", model.CategoryAll, "only this category")
	f.StringVarP(&search, "search", "s", "", "case-insensitive text search")
	f.BoolVar(&asJSON, "json", false, "print the stored JSON layout")
	return cmd
}

func renderTable(tasks []model.Task) string {
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		check := "[ ]"
		if t.Completed {
			check = "[x]"
		}
		rows = append(rows, []string{
			shortID(t.ID),
			check,
			string(t.Priority),
			t.Category,
			formatTime(t.DueDate, "2006-01-02"),
			formatTime(t.Reminder, "2006-01-02 15:04"),
			t.Text,
		})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "DONE", "PRIORITY", "CATEGORY", "DUE", "REMINDER", "TASK").
		Rows(rows...).
		Render()
}

func formatTime(v *time.Time, layout string) string {
	if v == nil {
		return "-"
	}
	return v.Format(layout)
}

func newDoneCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "done ID",
		Short: "Mark a task completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setCompleted(e, args[0], true)
		},
	}
}

func newReopenCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "reopen ID",
		Short: "Mark a completed task as open again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setCompleted(e, args[0], false)
		},
	}
}

func setCompleted(e *env, ref string, completed bool) error {
	return withCore(e, func(c *core) error {
		task, err := c.svc.Resolve(ref)
		if err != nil {
			return err
		}
		if task.Completed == completed {
			fmt.Fprintf(e.out, "%s is already %s\n", shortID(task.ID), completionWord(completed))
			return nil
		}
		if task, err = c.svc.ToggleComplete(task.ID); err != nil {
			return err
		}
		if err := persisted(c); err != nil {
			return err
		}
		fmt.Fprintf(e.out, "%s %s: %s\n", shortID(task.ID), completionWord(completed), task.Text)
		return nil
	})
}

func completionWord(completed bool) string {
	if completed {
		return "completed"
	}
	return "reopened"
}

func newEditCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "edit ID TEXT",
		Short: "Replace the text of a task",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCore(e, func(c *core) error {
				task, err := c.svc.Resolve(args[0])
				if err != nil {
					return err
				}
				if task, err = c.svc.Edit(task.ID, strings.Join(args[1:], " ")); err != nil {
					return err
				}
				if err := persisted(c); err != nil {
					return err
				}
				fmt.Fprintf(e.out, "Updated %s %s\n", shortID(task.ID), task.Text)
				return nil
			})
		},
	}
}

func newRmCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCore(e, func(c *core) error {
				task, err := c.svc.Resolve(args[0])
				if err != nil {
					return err
				}
				if err := c.svc.Delete(task.ID); err != nil {
					return err
				}
				if err := persisted(c); err != nil {
					return err
				}
				fmt.Fprintf(e.out, "Deleted %s %s\n", shortID(task.ID), task.Text)
				return nil
			})
		},
	}
}

func newClearCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every completed task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCore(e, func(c *core) error {
				n, err := c.svc.ClearCompleted()
				if err != nil {
					return err
				}
				if err := persisted(c); err != nil {
					return err
				}
				fmt.Fprintf(e.out, "Cleared %d completed tasks\n", n)
				return nil
			})
		},
	}
}

func newStatsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show completion statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCore(e, func(c *core) error {
				s := query.Stats(c.svc.List())
				fmt.Fprintf(e.out, "total: %d\ncompleted: %d\npending: %d\nprogress: %d%%\n", s.Total, s.Completed, s.Pending, s.ProgressPercent)
				return nil
			})
		},
	}
}

// lockedWriter serialises writes from timer goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, format, args...)
}

func newWatchCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stay in the foreground and print reminders as they fire",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &lockedWriter{w: e.out}
			c, err := e.open(func(n model.Notification) {
				out.printf("⏰ %s  %s  [%s]\n", n.Reminder.Format("2006-01-02 15:04"), n.Text, n.Category)
			})
			if err != nil {
				return err
			}
			defer c.Close()
			if c.loadErr != nil {
				fmt.Fprintf(e.errOut, "warning: %v\n", c.loadErr)
			}

			armed := c.svc.Start()
			out.printf("Watching %d reminders. Press Ctrl+C to stop.\n", armed)
			e.log.Info("reminder daemon started", zap.Int("armed", armed))

			return c.watchExternalChanges(cmd.Context())
		},
	}
}

func newExportICSCmd(e *env) *cobra.Command {
	var (
		output           string
		includeCompleted bool
	)
	cmd := &cobra.Command{
		Use:   "export-ics",
		Short: "Export tasks with a due date as an iCalendar file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCore(e, func(c *core) error {
				tasks := c.svc.List()
				opts := calendar.Options{IncludeCompleted: includeCompleted}
				if output == "" || output == "-" {
					_, err := calendar.Write(e.out, tasks, e.clock.Now(), opts)
					return err
				}

				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				n, err := calendar.Write(f, tasks, e.clock.Now(), opts)
				if cerr := f.Close(); err == nil && cerr != nil {
					err = fmt.Errorf("failed to write %s: %w", output, cerr)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(e.out, "Exported %d tasks to %s\n", n, output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to FILE instead of stdout")
	cmd.Flags().BoolVar(&includeCompleted, "all", false, "include completed tasks")
	return cmd
}

// exitCode maps command errors to process exit codes.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, app.ErrTaskNotFound), errors.Is(err, app.ErrAmbiguousID):
		return 3
	default:
		var verr *app.ValidationError
		if errors.As(err, &verr) {
			return 2
		}
		return 1
	}
}
