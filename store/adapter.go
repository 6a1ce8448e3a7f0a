// Package store persists the task list to a durable key-value backend.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"tasklist/model"
)

const (
	DefaultKey     = "todoApp_tasks"
	DefaultViewKey = "todoApp_view"

	dateLayout = "2006-01-02"
)

// taskRecord is the persisted form of a task. Temporal fields are strings and
// absent values are written as null rather than omitted.
type taskRecord struct {
	ID          string  `json:"id"`
	Text        string  `json:"text"`
	Completed   bool    `json:"completed"`
	Priority    string  `json:"priority"`
	Category    string  `json:"category"`
	CreatedAt   string  `json:"createdAt"`
	CompletedAt *string `json:"completedAt"`
	FromDate    *string `json:"fromDate"`
	DueDate     *string `json:"dueDate"`
	Reminder    *string `json:"reminder"`
}

// Adapter serializes tasks under a fixed key of a KV backend.
type Adapter struct {
	kv      KV
	key     string
	viewKey string
	loc     *time.Location
	log     *zap.Logger
}

type Option func(*Adapter)

func WithKey(key string) Option {
	return func(a *Adapter) {
		if strings.TrimSpace(key) != "" {
			a.key = key
		}
	}
}

func WithViewKey(key string) Option {
	return func(a *Adapter) {
		if strings.TrimSpace(key) != "" {
			a.viewKey = key
		}
	}
}

// WithLocation sets the zone date-only fields are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(a *Adapter) {
		if loc != nil {
			a.loc = loc
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(a *Adapter) {
		if log != nil {
			a.log = log
		}
	}
}

func NewAdapter(kv KV, opts ...Option) *Adapter {
	a := &Adapter{
		kv:      kv,
		key:     DefaultKey,
		viewKey: DefaultViewKey,
		loc:     time.Local,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Key returns the storage key of the task list.
func (a *Adapter) Key() string { return a.key }

// Save writes the full task list. A failure is returned as *PersistenceError
// and is not fatal to callers.
func (a *Adapter) Save(tasks []model.Task) error {
	data, err := Encode(tasks)
	if err != nil {
		return &PersistenceError{Op: "save", Key: a.key, Err: err}
	}
	if err := a.kv.Set(a.key, data); err != nil {
		a.log.Debug("failed to save tasks", zap.String("key", a.key), zap.Error(err))
		return &PersistenceError{Op: "save", Key: a.key, Err: err}
	}
	a.log.Debug("tasks saved", zap.String("key", a.key), zap.Int("count", len(tasks)))
	return nil
}

// Load reads the task list. It always returns a usable list; a non-nil error
// only reports why stored data was dropped or replaced by a backup.
func (a *Adapter) Load() ([]model.Task, error) {
	data, ok, err := a.kv.Get(a.key)
	if err != nil {
		a.log.Warn("failed to read tasks", zap.String("key", a.key), zap.Error(err))
		return []model.Task{}, &PersistenceError{Op: "load", Key: a.key, Err: err}
	}
	if !ok {
		return []model.Task{}, nil
	}

	tasks, decodeErr := a.Decode(data)
	if decodeErr == nil {
		return tasks, nil
	}
	a.log.Warn("stored tasks are corrupt", zap.String("key", a.key), zap.Error(decodeErr))

	if r, ok := a.kv.(Recoverer); ok {
		valid := func(b []byte) bool {
			_, err := a.Decode(b)
			return err == nil
		}
		recovered, source, err := r.Recover(a.key, valid)
		if err == nil {
			tasks, err := a.Decode(recovered)
			if err == nil {
				a.log.Info("tasks recovered from backup", zap.String("source", source), zap.Int("count", len(tasks)))
				return tasks, &PersistenceError{
					Op:  "load",
					Key: a.key,
					Err: fmt.Errorf("%w: recovered from %s", ErrCorruptState, source),
				}
			}
		} else if !errors.Is(err, errNoValidBackup) {
			a.log.Warn("backup recovery failed", zap.Error(err))
		}
	}

	return []model.Task{}, &PersistenceError{
		Op:  "load",
		Key: a.key,
		Err: fmt.Errorf("%w: %v", ErrCorruptState, decodeErr),
	}
}

// SaveView stores presentation filters under the view key.
func (a *Adapter) SaveView(v model.ViewState) error {
	data, err := json.Marshal(v.Normalize())
	if err != nil {
		return &PersistenceError{Op: "save", Key: a.viewKey, Err: err}
	}
	if err := a.kv.Set(a.viewKey, data); err != nil {
		a.log.Warn("failed to save view state", zap.Error(err))
		return &PersistenceError{Op: "save", Key: a.viewKey, Err: err}
	}
	return nil
}

// LoadView returns the stored filters, or the unfiltered view.
func (a *Adapter) LoadView() model.ViewState {
	data, ok, err := a.kv.Get(a.viewKey)
	if err != nil || !ok {
		return model.NewViewState()
	}
	var v model.ViewState
	if err := json.Unmarshal(data, &v); err != nil {
		a.log.Debug("ignoring corrupt view state", zap.Error(err))
		return model.NewViewState()
	}
	return v.Normalize()
}

// Encode serializes tasks in their persisted layout.
func Encode(tasks []model.Task) ([]byte, error) {
	records := make([]taskRecord, 0, len(tasks))
	for _, t := range tasks {
		records = append(records, toRecord(t))
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Decode parses a persisted task list. Any malformed record rejects the whole list.
func (a *Adapter) Decode(data []byte) ([]model.Task, error) {
	var records []taskRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	if records == nil {
		return nil, errors.New("task list is null")
	}

	seen := make(map[string]bool, len(records))
	tasks := make([]model.Task, 0, len(records))
	for i, r := range records {
		t, err := a.fromRecord(r)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("record %d: duplicate id %q", i, t.ID)
		}
		seen[t.ID] = true
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func toRecord(t model.Task) taskRecord {
	return taskRecord{
		ID:          t.ID,
		Text:        t.Text,
		Completed:   t.Completed,
		Priority:    string(t.Priority),
		Category:    t.Category,
		CreatedAt:   t.CreatedAt.Format(time.RFC3339Nano),
		CompletedAt: formatTimestamp(t.CompletedAt),
		FromDate:    formatDate(t.FromDate),
		DueDate:     formatDate(t.DueDate),
		Reminder:    formatTimestamp(t.Reminder),
	}
}

func (a *Adapter) fromRecord(r taskRecord) (model.Task, error) {
	if strings.TrimSpace(r.ID) == "" {
		return model.Task{}, errors.New("missing id")
	}
	if strings.TrimSpace(r.Text) == "" {
		return model.Task{}, errors.New("missing text")
	}
	createdAt, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
	if err != nil {
		return model.Task{}, fmt.Errorf("createdAt: %w", err)
	}

	priority, ok := model.ParsePriority(r.Priority)
	if !ok {
		priority = model.PriorityMedium
	}
	category := strings.TrimSpace(r.Category)
	if category == "" {
		category = model.DefaultCategory
	}

	t := model.Task{
		ID:        r.ID,
		Text:      r.Text,
		Completed: r.Completed,
		Priority:  priority,
		Category:  category,
		CreatedAt: createdAt,
	}
	if t.CompletedAt, err = parseTimestamp(r.CompletedAt); err != nil {
		return model.Task{}, fmt.Errorf("completedAt: %w", err)
	}
	if t.FromDate, err = a.parseDate(r.FromDate); err != nil {
		return model.Task{}, fmt.Errorf("fromDate: %w", err)
	}
	if t.DueDate, err = a.parseDate(r.DueDate); err != nil {
		return model.Task{}, fmt.Errorf("dueDate: %w", err)
	}
	if t.Reminder, err = parseTimestamp(r.Reminder); err != nil {
		return model.Task{}, fmt.Errorf("reminder: %w", err)
	}
	if !t.Completed {
		t.CompletedAt = nil
	}
	return t, nil
}

func formatTimestamp(v *time.Time) *string {
	if v == nil {
		return nil
	}
	s := v.Format(time.RFC3339Nano)
	return &s
}

func formatDate(v *time.Time) *string {
	if v == nil {
		return nil
	}
	s := v.Format(dateLayout)
	return &s
}

func parseTimestamp(s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parseDate accepts YYYY-MM-DD, and full timestamps written by older data.
func (a *Adapter) parseDate(s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	raw := strings.TrimSpace(*s)
	if d, err := time.ParseInLocation(dateLayout, raw, a.loc); err == nil {
		return &d, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, err
	}
	d := model.StartOfDay(ts.In(a.loc))
	return &d, nil
}
