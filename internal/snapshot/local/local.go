// Package local archives page snapshots on the local filesystem. Handy for
// development and for single-host deployments that do not want a bucket.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config holds the local snapshot store settings.
type Config struct {
	BaseDir string `mapstructure:"base_dir"`
}

// Store writes snapshots under a base directory, mirroring the object paths
// a bucket store would use.
type Store struct {
	baseDir string
}

// New ensures the base directory exists and is usable.
func New(cfg Config) (*Store, error) {
	if cfg.BaseDir == "" {
		return nil, fmt.Errorf("local snapshot store: base_dir is required")
	}
	abs, err := filepath.Abs(cfg.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create base dir: %w", err)
	}
	return &Store{baseDir: abs}, nil
}

// Put writes one snapshot and returns its file:// URI. Paths that would
// escape the base directory are rejected.
func (s *Store) Put(ctx context.Context, path, _ string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if path == "" {
		return "", fmt.Errorf("snapshot path is required")
	}
	full := filepath.Join(s.baseDir, filepath.FromSlash(path))
	if !strings.HasPrefix(full, s.baseDir+string(os.PathSeparator)) {
		return "", fmt.Errorf("snapshot path %q escapes base dir", path)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o600); err != nil {
		return "", fmt.Errorf("write snapshot %s: %w", path, err)
	}
	return "file://" + filepath.ToSlash(full), nil
}
