// Package memory provides an in-process status store for tests and
// single-binary deployments.
package memory

import (
	"context"
	"sort"
	"sync"

	"jobhound/internal/status"
)

// Store keeps run snapshots in a map.
type Store struct {
	mu   sync.RWMutex
	runs map[string]status.Run
}

// New creates an empty store.
func New() *Store {
	return &Store{runs: make(map[string]status.Run)}
}

// PutRun replaces the snapshot for run.ID.
func (s *Store) PutRun(_ context.Context, run status.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	return nil
}

// GetRun returns the snapshot and whether it exists.
func (s *Store) GetRun(_ context.Context, runID string) (status.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	return run, ok, nil
}

// ListRuns returns up to limit runs, most recently started first.
func (s *Store) ListRuns(_ context.Context, limit int) ([]status.Run, error) {
	s.mu.RLock()
	runs := make([]status.Run, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	s.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Close implements status.Store; it performs no action.
func (s *Store) Close() error {
	return nil
}
