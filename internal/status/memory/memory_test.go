package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobhound/internal/status"
)

func TestStorePutReplacesSnapshot(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()

	run := status.Run{ID: "r1", State: status.StateRunning, ItemsSaved: 1}
	require.NoError(t, store.PutRun(ctx, run))

	run.ItemsSaved = 5
	run.State = status.StateSucceeded
	require.NoError(t, store.PutRun(ctx, run))

	got, ok, err := store.GetRun(ctx, "r1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(5), got.ItemsSaved)
	assert.Equal(t, status.StateSucceeded, got.State)
}

func TestStoreGetMissing(t *testing.T) {
	t.Parallel()

	store := New()
	_, ok, err := store.GetRun(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreListOrdersByStartDesc(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, store.PutRun(ctx, status.Run{
			ID:        id,
			State:     status.StateRunning,
			StartedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "old", runs[2].ID)

	limited, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "new", limited[0].ID)
	assert.Equal(t, "mid", limited[1].ID)
}
