// Package status declares the live run-progress model served by the ops API.
package status

import (
	"context"
	"time"
)

// State is the lifecycle state of a crawl run.
type State string

// Run states.
const (
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Run is the live view of one crawl run. The progress status sink owns the
// counters and pushes whole snapshots, so stores only ever replace.
type Run struct {
	ID           string     `json:"id"`
	State        State      `json:"state"`
	Site         string     `json:"site,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	PagesVisited int64      `json:"pages_visited"`
	ItemsSaved   int64      `json:"items_saved"`
	Retries      int64      `json:"retries"`
	Abandoned    int64      `json:"abandoned"`
	LastURL      string     `json:"last_url,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Store persists run snapshots.
type Store interface {
	// PutRun replaces the stored snapshot for run.ID.
	PutRun(ctx context.Context, run Run) error
	// GetRun returns the snapshot and whether it exists.
	GetRun(ctx context.Context, runID string) (Run, bool, error)
	// ListRuns returns up to limit runs, most recently started first.
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	// Close releases any client resources.
	Close() error
}
