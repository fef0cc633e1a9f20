// Package file stores the transaction list as a single JSON document.
package file

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"flow/internal/core"
	"flow/internal/store"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

const debounceDelay = 100 * time.Millisecond

// Store keeps transactions in memory and mirrors every mutation to a JSON
// file. Insertion order is preserved.
type Store struct {
	path string

	mu        sync.RWMutex
	items     []core.Transaction
	lastWrite []byte
}

var _ store.Repository = (*Store)(nil)

// Open loads path, creating its directory if needed. A missing file is an
// empty list. Records without an ID are given one and written back.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	s := &Store{path: path}
	assigned, err := s.load()
	if err != nil {
		return nil, err
	}
	if assigned > 0 {
		slog.Info("Assigned IDs to legacy transactions", "count", assigned, "path", path)
		s.mu.Lock()
		err = s.persistLocked()
		s.mu.Unlock()
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

func (s *Store) List(_ context.Context) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Transaction(nil), s.items...), nil
}

func (s *Store) Get(_ context.Context, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.items[i], nil
	}
	return core.Transaction{}, core.ErrNotFound
}

func (s *Store) Create(_ context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(t.ID) >= 0 {
		return fmt.Errorf("%w: %s", store.ErrExists, t.ID)
	}
	s.items = append(s.items, t)
	if err := s.persistLocked(); err != nil {
		s.items = s.items[:len(s.items)-1]
		return err
	}
	return nil
}

func (s *Store) Update(_ context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(t.ID)
	if i < 0 {
		return core.ErrNotFound
	}
	prev := s.items[i]
	s.items[i] = t
	if err := s.persistLocked(); err != nil {
		s.items[i] = prev
		return err
	}
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return core.ErrNotFound
	}
	prev := s.items
	s.items = append(append([]core.Transaction(nil), s.items[:i]...), s.items[i+1:]...)
	if err := s.persistLocked(); err != nil {
		s.items = prev
		return err
	}
	return nil
}

// Reload re-reads the file. It reports whether the content differs from what
// this store last wrote.
func (s *Store) Reload() (bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("read transactions file: %w", err)
	}
	s.mu.RLock()
	same := bytes.Equal(bytes.TrimSpace(data), bytes.TrimSpace(s.lastWrite))
	s.mu.RUnlock()
	if same {
		return false, nil
	}
	if _, err := s.load(); err != nil {
		return false, err
	}
	return true, nil
}

// Watch reloads the store when the file is changed by another process and
// then calls onChange. It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer watcher.Close()

	// Atomic saves replace the file, so watch the directory.
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	name := filepath.Clean(s.path)

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDelay, func() {
				changed, err := s.Reload()
				if err != nil {
					slog.Error("Failed to reload transactions file", "path", s.path, "error", err)
					return
				}
				if changed {
					slog.Info("Transactions file changed on disk", "path", s.path)
					if onChange != nil {
						onChange()
					}
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("File watcher error", "path", s.path, "error", err)
		}
	}
}

// load replaces the in-memory list with the file content and returns how
// many records were given a new ID.
func (s *Store) load() (int, error) {
	data, err := os.ReadFile(s.path)
	if err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("read transactions file: %w", err)
	}
	items, err := core.DecodeTransactions(data)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", s.path, err)
	}

	assigned := 0
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
			assigned++
		}
	}

	s.mu.Lock()
	s.items = items
	s.lastWrite = data
	s.mu.Unlock()
	return assigned, nil
}

// persistLocked writes the list to a temp file and renames it over the
// target. Callers hold s.mu.
func (s *Store) persistLocked() error {
	data, err := core.EncodeTransactions(s.items)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".transactions-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace transactions file: %w", err)
	}
	s.lastWrite = data
	return nil
}

func (s *Store) indexLocked(id string) int {
	for i, t := range s.items {
		if t.ID == id {
			return i
		}
	}
	return -1
}
