package crawler

import (
	"context"
	"net/http"
	"time"

	"jobhound/internal/identity"
	"jobhound/internal/progress"
)

// Fetcher performs one transport attempt. Implementations must honor ctx
// cancellation and their own hard timeout; transport failures are returned
// as the error and folded into FetchResult.Err by the engine.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (FetchResult, error)
}

// LinkExtractor discovers detail-page links in listing markup, resolved to
// absolute URLs and deduplicated within the page, in document order.
type LinkExtractor interface {
	Links(body []byte, baseURL string) []string
}

// RecordExtractor maps detail-page markup to a Record. The returned Record
// may be invalid (empty title); the engine applies the validity gate.
type RecordExtractor interface {
	Record(body []byte, sourceURL string) Record
}

// RecordSink receives every valid Record exactly once per source URL.
// Append-only; at-least-once delivery is acceptable downstream.
type RecordSink interface {
	Save(ctx context.Context, rec Record) error
}

// Publisher pushes saved records to an event bus.
type Publisher interface {
	Publish(ctx context.Context, rec Record) (string, error)
}

// SnapshotStore archives raw page bodies for diagnosis and returns the
// stored object's URI.
type SnapshotStore interface {
	Put(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// IdentitySource hands out crawl identities and absorbs their outcomes.
type IdentitySource interface {
	Acquire(ctx context.Context, stickyKey string) (*identity.Identity, error)
	Release(id *identity.Identity)
	RecordOutcome(id *identity.Identity, outcome identity.Outcome)
	IngestCookies(id *identity.Identity, headers http.Header)
}

// RateLimiter throttles fetches per domain.
type RateLimiter interface {
	Wait(ctx context.Context, domain string) error
}

// Hasher digests bytes into a stable hex string, used for snapshot paths.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// ProgressEmitter receives engine progress events. Emit must not block.
type ProgressEmitter interface {
	Emit(event progress.Event)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}
