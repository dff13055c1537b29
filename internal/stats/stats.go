// Package stats persists per-document visit counters (views, downloads,
// shares). Counters are monotonically non-decreasing and survive sync
// cycles: a sync never resets them.
package stats

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	huberr "git.home.luguber.info/inful/intrahub/internal/errors"
	"git.home.luguber.info/inful/intrahub/internal/logfields"
)

const countersFile = "metrics.json"

// Counters holds the visit counters for one assigned ID.
type Counters struct {
	Views     int `json:"views"`
	Downloads int `json:"downloads"`
	Shares    int `json:"shares"`
}

// Store is a file-backed counter store keyed by assigned ID. Counter
// corruption degrades to zero counters; it never blocks a sync cycle.
type Store struct {
	path     string
	mu       sync.Mutex
	counters map[string]Counters
}

// Open loads the counter store from dataDir, degrading to an empty
// store when the file is missing or corrupt.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, huberr.Wrap(err, huberr.CategoryFileSystem, huberr.SeverityFatal, "failed to create data directory")
	}
	s := &Store{
		path:     filepath.Join(dataDir, countersFile),
		counters: make(map[string]Counters),
	}
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		slog.Warn("Counter store unreadable, starting empty", logfields.Error(err))
		return s, nil
	}
	if err := json.Unmarshal(data, &s.counters); err != nil {
		slog.Warn("Counter store corrupt, starting empty", logfields.Error(err))
		s.counters = make(map[string]Counters)
	}
	return s, nil
}

// Get returns the counters for assignedID, zero-valued when unseen.
func (s *Store) Get(assignedID string) Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[assignedID]
}

// Increment bumps one counter for assignedID and persists the store.
func (s *Store) Increment(assignedID, counter string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.counters[assignedID]
	switch counter {
	case "views":
		c.Views++
	case "downloads":
		c.Downloads++
	case "shares":
		c.Shares++
	default:
		return huberr.ValidationError(fmt.Sprintf("unknown counter %q", counter))
	}
	s.counters[assignedID] = c
	return s.persistLocked()
}

// persistLocked writes the counters atomically. Callers must hold s.mu.
func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.counters, "", "  ")
	if err != nil {
		return huberr.Wrap(err, huberr.CategoryInternal, huberr.SeverityError, "failed to marshal counters")
	}
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return huberr.Wrap(err, huberr.CategoryFileSystem, huberr.SeverityError, "failed to write counter temp file")
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return huberr.Wrap(err, huberr.CategoryFileSystem, huberr.SeverityError, "failed to replace counter file")
	}
	return nil
}
