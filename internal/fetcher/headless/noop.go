package headless

import (
	"context"
	"errors"

	"jobhound/internal/crawler"
)

// ErrUnavailable is returned by Noop for every fetch.
var ErrUnavailable = errors.New("headless fetcher not configured")

// Noop stands in when no browser is available. Soft-block escalations fall
// back to plain retries instead of rendering.
type Noop struct{}

// NewNoop creates a new Noop fetcher.
func NewNoop() *Noop {
	return &Noop{}
}

// Fetch always fails with ErrUnavailable.
func (Noop) Fetch(_ context.Context, _ crawler.FetchRequest) (crawler.FetchResult, error) {
	return crawler.FetchResult{}, ErrUnavailable
}
