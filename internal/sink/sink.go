// Package sink persists extracted records. Concrete sinks live in
// subpackages; Multi fans one save out to several of them.
package sink

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/multierr"

	"jobhound/internal/crawler"
)

// Multi writes each record to every configured sink. A failing sink does
// not stop the others; all failures come back as one combined error.
type Multi struct {
	sinks []crawler.RecordSink
}

// NewMulti builds a Multi from the given sinks, skipping nils.
func NewMulti(sinks ...crawler.RecordSink) *Multi {
	kept := make([]crawler.RecordSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Multi{sinks: kept}
}

// Save stores rec in every sink.
func (m *Multi) Save(ctx context.Context, rec crawler.Record) error {
	var err error
	for _, s := range m.sinks {
		if saveErr := s.Save(ctx, rec); saveErr != nil {
			err = multierr.Append(err, fmt.Errorf("save %s: %w", rec.SourceURL, saveErr))
		}
	}
	return err
}

// Close closes every sink that supports closing.
func (m *Multi) Close() error {
	var err error
	for _, s := range m.sinks {
		if closer, ok := s.(io.Closer); ok {
			err = multierr.Append(err, closer.Close())
		}
	}
	return err
}

// Len reports the number of configured sinks.
func (m *Multi) Len() int {
	return len(m.sinks)
}
