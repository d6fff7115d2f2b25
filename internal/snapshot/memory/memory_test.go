package memory

import (
	"context"
	"testing"
)

func TestStorePutAndGet(t *testing.T) {
	t.Parallel()

	store := New()
	uri, err := store.Put(context.Background(), "runs/r1/detail/xyz.html", "text/html", []byte("body"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if uri != "memory://runs/r1/detail/xyz.html" {
		t.Fatalf("unexpected uri %q", uri)
	}

	data, ok := store.Get("runs/r1/detail/xyz.html")
	if !ok {
		t.Fatal("snapshot not found")
	}
	if string(data) != "body" {
		t.Fatalf("unexpected data %q", data)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 snapshot, got %d", store.Len())
	}
}

func TestStorePutCopiesData(t *testing.T) {
	t.Parallel()

	store := New()
	buf := []byte("original")
	if _, err := store.Put(context.Background(), "a", "text/html", buf); err != nil {
		t.Fatalf("Put: %v", err)
	}
	buf[0] = 'X'

	data, _ := store.Get("a")
	if string(data) != "original" {
		t.Fatalf("stored data mutated: %q", data)
	}
}
