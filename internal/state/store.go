// Package state persists the bot's process-wide counters and flags to a
// single JSON record on disk.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Record is the full durable state. Save always rewrites the whole record,
// never a partial one.
type Record struct {
	GenerationCount int    `json:"generation_count"`
	Maintenance     bool   `json:"maintenance"`
	MaintenanceMsg  string `json:"maintenance_msg"`
}

// Store owns the record and its file. Mutators persist before returning, so
// a crash loses at most the mutation in flight.
type Store struct {
	path string

	mu  sync.Mutex
	rec Record
}

// Open reads the record at path. A missing file is not an error: the store
// starts with zero values.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}
	if err := json.Unmarshal(data, &s.rec); err != nil {
		return nil, fmt.Errorf("parsing state file %s: %w", path, err)
	}
	return s, nil
}

// Snapshot returns a copy of the current record.
func (s *Store) Snapshot() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec
}

// GenerationCount returns the number of sessions generated so far.
func (s *Store) GenerationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.GenerationCount
}

// IncrementGenerations bumps the counter and persists. The counter never
// decreases.
func (s *Store) IncrementGenerations() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.GenerationCount++
	return s.saveLocked()
}

// Maintenance reports the maintenance flag and its message.
func (s *Store) Maintenance() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Maintenance, s.rec.MaintenanceMsg
}

// ToggleMaintenance flips the maintenance flag, replaces the message and
// persists. Returns the new flag value.
func (s *Store) ToggleMaintenance(msg string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.Maintenance = !s.rec.Maintenance
	s.rec.MaintenanceMsg = msg
	return s.rec.Maintenance, s.saveLocked()
}

// Save persists the current record. Called once more at orderly shutdown.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// saveLocked writes the full record via temp file + rename, so readers never
// observe a partially written file.
func (s *Store) saveLocked() error {
	data, err := json.Marshal(s.rec)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}

// Path returns the file the store persists to.
func (s *Store) Path() string {
	return filepath.Clean(s.path)
}
