// Package jsonl appends records to a JSON-lines file, one object per line.
package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"jobhound/internal/crawler"
)

// Sink writes records to a JSON-lines file. Safe for concurrent use.
type Sink struct {
	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
	enc  *json.Encoder
}

// New opens path for appending, creating parent directories as needed.
func New(path string) (*Sink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create sink dir %s: %w", dir, err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	buf := bufio.NewWriter(file)
	return &Sink{
		file: file,
		buf:  buf,
		enc:  json.NewEncoder(buf),
	}, nil
}

// Save appends rec as one JSON line.
func (s *Sink) Save(ctx context.Context, rec crawler.Record) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(rec); err != nil {
		return fmt.Errorf("encode record %s: %w", rec.SourceURL, err)
	}
	return nil
}

// Close flushes buffered lines and closes the file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.buf.Flush(); err != nil {
		_ = s.file.Close()
		return fmt.Errorf("flush records: %w", err)
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close records file: %w", err)
	}
	return nil
}
