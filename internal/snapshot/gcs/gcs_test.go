package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestStorePutUploadsObject(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var uploadPath string
	var uploadBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/b/snap-bucket"):
			fmt.Fprint(w, `{"name":"snap-bucket"}`)
		case strings.Contains(r.URL.Path, "/upload/"):
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			uploadPath = r.URL.Path
			uploadBody = body
			mu.Unlock()
			fmt.Fprint(w, `{"name":"runs/r1/listing/abc.html","bucket":"snap-bucket"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	ctx := context.Background()
	store, err := New(ctx, Config{Bucket: "snap-bucket"},
		option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	defer store.Close()

	uri, err := store.Put(ctx, "runs/r1/listing/abc.html", "text/html", []byte("<html>blocked page</html>"))
	require.NoError(t, err)
	assert.Equal(t, "gs://snap-bucket/runs/r1/listing/abc.html", uri)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, uploadPath, "/b/snap-bucket/o")
	assert.Contains(t, string(uploadBody), "<html>blocked page</html>")
}

func TestNewVerifiesBucket(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := New(context.Background(), Config{Bucket: "missing-bucket"},
		option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing-bucket")
}

func TestNewRequiresBucket(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	require.Error(t, err)

	_, err = NewWithClient(nil, "bucket")
	require.Error(t, err)
}
