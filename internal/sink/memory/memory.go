// Package memory provides an in-memory record sink for tests and dry runs.
package memory

import (
	"context"
	"sync"

	"jobhound/internal/crawler"
)

// Sink collects records in memory.
type Sink struct {
	mu      sync.Mutex
	records []crawler.Record
}

// New creates an empty Sink.
func New() *Sink {
	return &Sink{}
}

// Save appends rec.
func (s *Sink) Save(_ context.Context, rec crawler.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// Records returns a copy of everything saved so far.
func (s *Sink) Records() []crawler.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]crawler.Record(nil), s.records...)
}

// Len reports the number of saved records.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
