package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresAddr(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "addr")
}

func TestNewFailsFastOnUnreachableServer(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// A reserved TEST-NET address never answers; the ping must surface it.
	_, err := New(ctx, Config{Addr: "192.0.2.1:6379"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis")
}

func TestKeyLayout(t *testing.T) {
	t.Parallel()

	s := &Store{prefix: "jobhound:run:"}
	assert.Equal(t, "jobhound:run:abc", s.runKey("abc"))
	assert.Equal(t, "jobhound:run:index", s.indexKey())

	custom := &Store{prefix: "staging:"}
	assert.Equal(t, "staging:r1", custom.runKey("r1"))
	assert.Equal(t, "staging:index", custom.indexKey())
}
