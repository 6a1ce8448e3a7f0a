package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const maxRotatingBackups = 10

// FileKV stores each key as a JSON file inside a directory.
// Writes go through a temporary file and an atomic rename, and keep a latest
// backup (.bak) plus a rotating timestamped backup set.
type FileKV struct {
	dir string

	mu          sync.Mutex
	lastWritten map[string][]byte
}

func NewFileKV(dir string) (*FileKV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileKV{dir: dir, lastWritten: make(map[string][]byte)}, nil
}

// Path returns the file backing key.
func (f *FileKV) Path(key string) string {
	name := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
	return filepath.Join(f.dir, name+".json")
}

func (f *FileKV) Get(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(f.Path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (f *FileKV) Set(key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := autosave(f.Path(key), value); err != nil {
		return err
	}
	f.lastWritten[key] = append([]byte(nil), value...)
	return nil
}

func (f *FileKV) Close() error { return nil }

// Recover renames the current (corrupt) file to <name>.corrupt-<time>.json
// and restores the newest backup accepted by valid.
func (f *FileKV) Recover(key string, valid func([]byte) bool) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.Path(key)
	if _, err := os.Stat(path); err == nil {
		name := strings.TrimSuffix(path, ".json")
		aside := fmt.Sprintf("%s.corrupt-%s.json", name, time.Now().UTC().Format("20060102-150405"))
		if err := os.Rename(path, aside); err != nil {
			return nil, "", fmt.Errorf("move corrupt file: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, "", fmt.Errorf("move corrupt file: %w", err)
	}

	candidates, err := backupsNewestFirst(path)
	if err != nil {
		return nil, "", err
	}
	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if err != nil || (valid != nil && !valid(data)) {
			continue
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, "", fmt.Errorf("restore backup: %w", err)
		}
		f.lastWritten[key] = append([]byte(nil), data...)
		return data, filepath.Base(candidate), nil
	}
	return nil, "", errNoValidBackup
}

// Watch calls fn with the new contents whenever key's file is changed by
// another process. It blocks until ctx is done.
func (f *FileKV) Watch(ctx context.Context, key string, fn func([]byte)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Renames replace the inode, so the directory is watched instead of the file.
	if err := w.Add(f.dir); err != nil {
		return err
	}
	path := filepath.Clean(f.Path(key))

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return err
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			data, err := os.ReadFile(path)
			if err != nil || len(data) == 0 {
				continue
			}
			if f.isOwnWrite(key, data) {
				continue
			}
			fn(data)
		}
	}
}

func (f *FileKV) isOwnWrite(key string, data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return bytes.Equal(f.lastWritten[key], data)
}

// autosave keeps the previous contents as backups, then replaces path
// atomically.
func autosave(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := keepBackups(path); err != nil {
		return fmt.Errorf("backup: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// keepBackups copies the current file to <path>.bak and to a timestamped
// <path>.bak.<time>, keeping only the newest maxRotatingBackups of the latter.
func keepBackups(path string) error {
	current, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	stamped := path + ".bak." + time.Now().UTC().Format("20060102-150405.000000000")
	for _, dst := range []string{path + ".bak", stamped} {
		if err := os.WriteFile(dst, current, 0o644); err != nil {
			return err
		}
	}

	rotating, err := filepath.Glob(path + ".bak.*")
	if err != nil {
		return err
	}
	if excess := len(rotating) - maxRotatingBackups; excess > 0 {
		// Glob sorts by name, and the timestamp suffix sorts oldest first.
		for _, old := range rotating[:excess] {
			if err := os.Remove(old); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
		}
	}
	return nil
}

// backupsNewestFirst lists <path>.bak followed by the rotating backups,
// newest first.
func backupsNewestFirst(path string) ([]string, error) {
	rotating, err := filepath.Glob(path + ".bak.*")
	if err != nil {
		return nil, err
	}
	slices.Reverse(rotating)

	var out []string
	if _, err := os.Stat(path + ".bak"); err == nil {
		out = append(out, path+".bak")
	}
	return append(out, rotating...), nil
}
