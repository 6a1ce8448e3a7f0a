package store

import (
	"errors"
	"fmt"
	"sync"
)

// ErrCorruptState reports stored data that could not be decoded.
var ErrCorruptState = errors.New("corrupt stored state")

// errNoValidBackup is returned by Recoverer implementations with nothing to offer.
var errNoValidBackup = errors.New("no valid backup found")

// KV is a durable string-keyed store.
type KV interface {
	// Get returns the value under key. ok is false when the key is absent.
	Get(key string) (value []byte, ok bool, err error)
	Set(key string, value []byte) error
	Close() error
}

// Recoverer is implemented by backends that keep older copies of a value.
// Recover returns the newest copy accepted by valid and a label describing
// where it came from.
type Recoverer interface {
	Recover(key string, valid func([]byte) bool) ([]byte, string, error)
}

// PersistenceError wraps a failed read or write of the durable store.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// MemoryKV keeps values in process memory.
type MemoryKV struct {
	mu         sync.Mutex
	data       map[string][]byte
	writes     int
	failWrites error
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

func (m *MemoryKV) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *MemoryKV) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites != nil {
		return m.failWrites
	}
	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	m.writes++
	return nil
}

func (m *MemoryKV) Close() error { return nil }

// FailWrites makes every later Set return err. Pass nil to restore writes.
func (m *MemoryKV) FailWrites(err error) {
	m.mu.Lock()
	m.failWrites = err
	m.mu.Unlock()
}

// Writes returns the number of successful Set calls.
func (m *MemoryKV) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
