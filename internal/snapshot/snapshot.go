// Package snapshot archives raw page bodies for offline diagnosis. Stores
// return the URI of the stored object so events and logs can point straight
// at the evidence behind a block or a failed extraction.
package snapshot

import (
	"context"
	"fmt"
)

// Key builds the canonical object path for one page snapshot. kind is the
// task kind and digest a stable hash of the page URL.
func Key(runID, kind, digest string) string {
	return fmt.Sprintf("runs/%s/%s/%s.html", runID, kind, digest)
}

// Noop discards snapshots. Used when archiving is disabled.
type Noop struct{}

// Put drops the data and returns an empty URI.
func (Noop) Put(_ context.Context, _ string, _ string, _ []byte) (string, error) {
	return "", nil
}
