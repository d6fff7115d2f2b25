package sinks

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"jobhound/internal/progress"
	"jobhound/internal/status"
)

// StatusSink folds progress events into live run snapshots and pushes them to
// a status.Store. It owns the authoritative counters so stores only ever
// replace whole snapshots.
type StatusSink struct {
	store  status.Store
	logger *zap.Logger

	mu   sync.Mutex
	runs map[string]*status.Run
}

// NewStatusSink constructs a StatusSink for the provided store.
func NewStatusSink(store status.Store, logger *zap.Logger) *StatusSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusSink{
		store:  store,
		logger: logger,
		runs:   make(map[string]*status.Run),
	}
}

// Consume folds the batch into run snapshots and writes each touched run
// once, keeping write amplification low on chatty batches.
func (s *StatusSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.store == nil {
		return nil
	}

	s.mu.Lock()
	touched := make(map[string]struct{})
	for _, evt := range batch {
		s.fold(evt)
		touched[evt.RunID] = struct{}{}
	}
	snapshots := make([]status.Run, 0, len(touched))
	for id := range touched {
		if run := s.runs[id]; run != nil {
			snapshots = append(snapshots, *run)
		}
	}
	s.mu.Unlock()

	for _, run := range snapshots {
		if err := s.store.PutRun(ctx, run); err != nil {
			return fmt.Errorf("put run %s: %w", run.ID, err)
		}
	}
	return nil
}

func (s *StatusSink) fold(evt progress.Event) {
	run := s.runs[evt.RunID]
	if run == nil {
		run = &status.Run{ID: evt.RunID, State: status.StateRunning, StartedAt: evt.TS}
		s.runs[evt.RunID] = run
	}
	run.UpdatedAt = evt.TS

	switch evt.Stage {
	case progress.StageRunStart:
		run.StartedAt = evt.TS
		run.State = status.StateRunning
		if evt.Site != "" {
			run.Site = evt.Site
		}
	case progress.StageRunDone:
		ts := evt.TS
		run.FinishedAt = &ts
		run.State = status.StateSucceeded
	case progress.StageRunError:
		ts := evt.TS
		run.FinishedAt = &ts
		run.State = status.StateFailed
		if evt.Note != "" {
			run.LastError = evt.Note
		}
	case progress.StagePageDone:
		run.PagesVisited++
		run.LastURL = evt.URL
	case progress.StageRecordSaved:
		run.ItemsSaved++
		run.LastURL = evt.URL
	case progress.StageTaskRetry:
		run.Retries++
	case progress.StageTaskAbandoned:
		run.Abandoned++
		if evt.Note != "" {
			run.LastError = evt.Note
		}
	}
}

// Close drops finished runs from the in-memory fold state.
func (s *StatusSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, run := range s.runs {
		if run.State != status.StateRunning {
			delete(s.runs, id)
		}
	}
	return nil
}
