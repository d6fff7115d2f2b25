// Package gcs archives page snapshots in a Google Cloud Storage bucket.
package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Config holds the GCS snapshot store settings.
type Config struct {
	Bucket string `mapstructure:"bucket"`
}

// Store writes snapshots as objects under a single bucket.
type Store struct {
	client *storage.Client
	bucket string
	owned  bool
}

// New connects to GCS and verifies the bucket exists before returning, so a
// misconfigured bucket fails at startup instead of on the first snapshot.
func New(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs snapshot store: bucket is required")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	if _, err := client.Bucket(cfg.Bucket).Attrs(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("verify bucket %q: %w", cfg.Bucket, err)
	}
	return &Store{client: client, bucket: cfg.Bucket, owned: true}, nil
}

// NewWithClient wraps an existing client. The caller keeps ownership of the
// client and the bucket is not probed.
func NewWithClient(client *storage.Client, bucket string) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("gcs snapshot store: client is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("gcs snapshot store: bucket is required")
	}
	return &Store{client: client, bucket: bucket}, nil
}

// Put uploads one snapshot and returns its gs:// URI.
func (s *Store) Put(ctx context.Context, path, contentType string, data []byte) (string, error) {
	if path == "" {
		return "", fmt.Errorf("snapshot path is required")
	}
	w := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		w.Close()
		return "", fmt.Errorf("write object %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize object %s: %w", path, err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, path), nil
}

// Close releases the client when this store created it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}
