// Package memory keeps page snapshots in process memory. For tests.
package memory

import (
	"context"
	"sync"
)

// Store is an in-memory snapshot store.
type Store struct {
	mu   sync.Mutex
	data map[string][]byte
}

// New returns an empty store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Put stores a copy of the data and returns a memory:// URI.
func (s *Store) Put(_ context.Context, path, _ string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.data[path] = buf
	return "memory://" + path, nil
}

// Get returns the stored bytes for a path.
func (s *Store) Get(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf, ok := s.data[path]
	return buf, ok
}

// Len reports how many snapshots are stored.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}
