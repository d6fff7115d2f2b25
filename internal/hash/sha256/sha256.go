// Package sha256 derives stable hex digests. The engine keys debug snapshots
// by the digest of the page URL, so the same page always lands on the same
// object key.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher is the production crawler.Hasher.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the lowercase hex SHA-256 digest of data.
func (Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
