// Package procstore persists the process registry's map of running workers.
//
// The map is small (one entry per open session), so the whole file is read,
// modified and atomically replaced on every mutation. No in-memory cache is
// authoritative across restarts.
package procstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/robgallardof/multig/internal/domain"
)

// FileStore implements domain.ProcessStore as a JSON file. Replace writes a
// sibling temp file and renames it over the target, so readers never observe
// a torn write.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (map[uuid.UUID]domain.ProcessEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileStore) load() (map[uuid.UUID]domain.ProcessEntry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[uuid.UUID]domain.ProcessEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read process registry: %w", err)
	}

	entries := map[uuid.UUID]domain.ProcessEntry{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode process registry: %w", err)
	}
	return entries, nil
}

func (s *FileStore) Replace(entries map[uuid.UUID]domain.ProcessEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode process registry: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp registry file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp registry file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp registry file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace process registry: %w", err)
	}
	return nil
}
