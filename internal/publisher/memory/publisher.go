// Package memory contains an in-memory record publisher for tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"jobhound/internal/crawler"
)

// Publisher stores published records for inspection.
type Publisher struct {
	mu      sync.RWMutex
	records []crawler.Record
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the message and returns a pseudo ID.
func (p *Publisher) Publish(_ context.Context, rec crawler.Record) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, rec)
	return fmt.Sprintf("memory-%d", len(p.records)), nil
}

// Records returns a copy of the published records.
func (p *Publisher) Records() []crawler.Record {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]crawler.Record, len(p.records))
	copy(out, p.records)
	return out
}
