// Package status persists the manual worktree tags, keyed by path.
package status

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"wtdash/internal/model"
)

// ErrInvalidStatus is returned for tags outside the fixed set.
var ErrInvalidStatus = errors.New("invalid status")

// Store reads and writes worktree tags.
type Store interface {
	Load() (map[string]model.Status, error)
	Set(path string, s model.Status) error
}

// fileData is the on-disk shape: {"statuses": {"/path": "reviewing"}}.
type fileData struct {
	Statuses map[string]model.Status `json:"statuses"`
}

// FileStore keeps tags in a JSON file. Writes take an advisory lock on
// <path>.lock so two dashboards cannot interleave read-modify-write.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path is the backing file.
func (s *FileStore) Path() string { return s.path }

// Load returns every stored tag. A missing or unreadable file yields an
// empty map; unknown tag values are dropped.
func (s *FileStore) Load() (map[string]model.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileStore) read() (map[string]model.Status, error) {
	out := map[string]model.Status{}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return out, fmt.Errorf("read status file: %w", err)
	}

	var fd fileData
	if err := json.Unmarshal(data, &fd); err != nil {
		return out, fmt.Errorf("parse status file: %w", err)
	}
	for p, st := range fd.Statuses {
		if v, err := model.ParseStatus(string(st)); err == nil && v != model.StatusUnset {
			out[p] = v
		}
	}
	return out, nil
}

// Set stores st for path; model.StatusUnset removes the tag.
func (s *FileStore) Set(path string, st model.Status) error {
	v, err := model.ParseStatus(string(st))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStatus, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create status dir: %w", err)
	}
	lock := flock.New(s.path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock status file: %w", err)
	}
	defer lock.Unlock()

	statuses, err := s.read()
	if err != nil {
		// A corrupt file is replaced rather than blocking every update.
		statuses = map[string]model.Status{}
	}
	if v == model.StatusUnset {
		delete(statuses, path)
	} else {
		statuses[path] = v
	}

	data, err := json.MarshalIndent(fileData{Statuses: statuses}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal statuses: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write status file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename status file: %w", err)
	}
	return nil
}

// MemStore is an in-memory Store.
type MemStore struct {
	mu       sync.Mutex
	statuses map[string]model.Status
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{statuses: map[string]model.Status{}}
}

func (m *MemStore) Load() (map[string]model.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]model.Status, len(m.statuses))
	for k, v := range m.statuses {
		out[k] = v
	}
	return out, nil
}

func (m *MemStore) Set(path string, st model.Status) error {
	v, err := model.ParseStatus(string(st))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStatus, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if v == model.StatusUnset {
		delete(m.statuses, path)
	} else {
		m.statuses[path] = v
	}
	return nil
}
