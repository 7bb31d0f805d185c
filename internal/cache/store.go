package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"grocat/backend"
)

// ErrCorrupt marks a stored snapshot document that no longer parses.
var ErrCorrupt = errors.New("corrupt snapshot document")

// Key addresses one cached snapshot: a (list, kind) pair.
// Categories are account-wide and use an empty ListID.
type Key struct {
	ListID string
	Kind   backend.Kind
}

// String returns a stable, filesystem-safe name for the key.
func (k Key) String() string {
	if k.ListID == "" {
		return string(k.Kind)
	}
	return string(k.Kind) + "-" + sanitize(k.ListID)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}

// Store persists snapshots. Save is a full replace of the stored document.
type Store interface {
	Load(key Key) (*backend.Snapshot, bool, error)
	Save(key Key, snap *backend.Snapshot) error
	Delete(key Key) error
	Close() error
}

// FileStore keeps one JSON document per key in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a file store rooted at dir. The directory is created on first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path returns the file backing key.
func (s *FileStore) Path(key Key) string {
	return filepath.Join(s.dir, key.String()+".json")
}

// Load reads the snapshot for key. A missing file reports ok=false.
func (s *FileStore) Load(key Key) (*backend.Snapshot, bool, error) {
	data, err := os.ReadFile(s.Path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache file: %w", err)
	}

	var snap backend.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("%w: invalid JSON in cache file %s: %v", ErrCorrupt, s.Path(key), err)
	}
	if snap.List.Items == nil {
		snap.List.Items = []backend.Item{}
	}
	return &snap, true, nil
}

// Save overwrites the file for key.
func (s *FileStore) Save(key Key, snap *backend.Snapshot) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.Path(key), data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return nil
}

// Delete removes the file for key; a missing file is not an error.
func (s *FileStore) Delete(key Key) error {
	err := os.Remove(s.Path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Clear removes every cached snapshot in the directory.
func (s *FileStore) Clear() error {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error {
	return nil
}

// MemoryStore keeps snapshots in memory. Stored values are copies.
type MemoryStore struct {
	mu    sync.Mutex
	snaps map[Key]*backend.Snapshot
	saves int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[Key]*backend.Snapshot)}
}

// Load returns a copy of the stored snapshot.
func (s *MemoryStore) Load(key Key) (*backend.Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[key]
	if !ok {
		return nil, false, nil
	}
	return snap.Clone(), true, nil
}

// Save stores a copy of snap.
func (s *MemoryStore) Save(key Key, snap *backend.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[key] = snap.Clone()
	s.saves++
	return nil
}

// Delete removes key.
func (s *MemoryStore) Delete(key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, key)
	return nil
}

// Saves returns how many times Save was called.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
