package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"jobhound/internal/progress"
	"jobhound/internal/status"
	statusmem "jobhound/internal/status/memory"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms are incremented from events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	now := time.Now().UTC()
	batch := []progress.Event{
		{RunID: "run-1", TS: now, Stage: progress.StageRunStart, Site: "jobs.example.com"},
		{
			RunID:       "run-1",
			TS:          now.Add(time.Second),
			Stage:       progress.StageFetchDone,
			Site:        "jobs.example.com",
			Kind:        "listing",
			StatusClass: progress.Status2xx,
			Bytes:       2048,
			Dur:         150 * time.Millisecond,
		},
		{
			RunID: "run-1",
			TS:    now.Add(2 * time.Second),
			Stage: progress.StagePageDone,
			URL:   "https://jobs.example.com/SearchResult?p=1",
			Links: 7,
		},
		{
			RunID: "run-1",
			TS:    now.Add(3 * time.Second),
			Stage: progress.StageRecordSaved,
			URL:   "https://jobs.example.com/job/a1",
		},
		{
			RunID:          "run-1",
			TS:             now.Add(4 * time.Second),
			Stage:          progress.StageTaskRetry,
			Classification: "hard_block",
		},
		{RunID: "run-1", TS: now.Add(10 * time.Second), Stage: progress.StageRunDone, Dur: 10 * time.Second},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("success")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("error")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsRunning))

	require.InDelta(
		t,
		1.0,
		testutil.ToFloat64(sink.fetchRequests.WithLabelValues("jobs.example.com", string(progress.Status2xx))),
		1e-9,
	)
	require.InDelta(t, 2048.0, testutil.ToFloat64(sink.fetchBytes.WithLabelValues("jobs.example.com")), 1e-9)
	require.Equal(t, 1, testutil.CollectAndCount(sink.fetchDuration, "jobhound_fetch_duration_seconds"))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.pagesDone))
	require.Equal(t, 7.0, testutil.ToFloat64(sink.linksDiscovered))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.recordsSaved))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.taskRetries.WithLabelValues("hard_block")))
}

// TestPrometheusSinkRunGaugeIgnoresDuplicates guards the running gauge against
// replayed lifecycle events.
func TestPrometheusSinkRunGaugeIgnoresDuplicates(t *testing.T) {
	t.Parallel()

	sink, err := NewPrometheusSink(prometheus.NewRegistry())
	require.NoError(t, err)

	now := time.Now().UTC()
	batch := []progress.Event{
		{RunID: "run-dup", TS: now, Stage: progress.StageRunStart},
		{RunID: "run-dup", TS: now, Stage: progress.StageRunStart},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsRunning))

	done := []progress.Event{
		{RunID: "run-dup", TS: now.Add(time.Second), Stage: progress.StageRunDone},
		{RunID: "run-dup", TS: now.Add(time.Second), Stage: progress.StageRunDone},
	}
	require.NoError(t, sink.Consume(context.Background(), done))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsRunning))
}

func TestStatusSinkFoldsRunSnapshot(t *testing.T) {
	t.Parallel()

	store := statusmem.New()
	sink := NewStatusSink(store, zap.NewNop())

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	finish := start.Add(30 * time.Second)
	batch := []progress.Event{
		{RunID: "run-9", TS: start, Stage: progress.StageRunStart, Site: "jobs.example.com"},
		{RunID: "run-9", TS: start.Add(time.Second), Stage: progress.StagePageDone, URL: "https://jobs.example.com/SearchResult?p=1"},
		{RunID: "run-9", TS: start.Add(2 * time.Second), Stage: progress.StageRecordSaved, URL: "https://jobs.example.com/job/a1"},
		{RunID: "run-9", TS: start.Add(3 * time.Second), Stage: progress.StageTaskRetry, Classification: "rate_limited"},
		{RunID: "run-9", TS: start.Add(4 * time.Second), Stage: progress.StageTaskAbandoned, Classification: "hard_block", Note: "403 after retries"},
		{RunID: "run-9", TS: finish, Stage: progress.StageRunDone, Dur: 30 * time.Second},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	run, ok, err := store.GetRun(context.Background(), "run-9")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, status.StateSucceeded, run.State)
	assert.Equal(t, "jobs.example.com", run.Site)
	assert.Equal(t, start, run.StartedAt)
	require.NotNil(t, run.FinishedAt)
	assert.Equal(t, finish, *run.FinishedAt)
	assert.Equal(t, int64(1), run.PagesVisited)
	assert.Equal(t, int64(1), run.ItemsSaved)
	assert.Equal(t, int64(1), run.Retries)
	assert.Equal(t, int64(1), run.Abandoned)
	assert.Equal(t, "https://jobs.example.com/job/a1", run.LastURL)
	assert.Equal(t, "403 after retries", run.LastError)
}

func TestStatusSinkMarksFailedRun(t *testing.T) {
	t.Parallel()

	store := statusmem.New()
	sink := NewStatusSink(store, zap.NewNop())

	start := time.Now().UTC()
	batch := []progress.Event{
		{RunID: "run-err", TS: start, Stage: progress.StageRunStart},
		{RunID: "run-err", TS: start.Add(time.Second), Stage: progress.StageRunError, Note: "context canceled"},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	run, ok, err := store.GetRun(context.Background(), "run-err")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, status.StateFailed, run.State)
	assert.Equal(t, "context canceled", run.LastError)
	require.NotNil(t, run.FinishedAt)
}

// TestStatusSinkCloseDropsFinishedRuns verifies fold state does not grow
// without bound across runs.
func TestStatusSinkCloseDropsFinishedRuns(t *testing.T) {
	t.Parallel()

	store := statusmem.New()
	sink := NewStatusSink(store, zap.NewNop())

	now := time.Now().UTC()
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: "run-done", TS: now, Stage: progress.StageRunStart},
		{RunID: "run-done", TS: now.Add(time.Second), Stage: progress.StageRunDone},
		{RunID: "run-live", TS: now, Stage: progress.StageRunStart},
	}))

	require.NoError(t, sink.Close(context.Background()))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.NotContains(t, sink.runs, "run-done")
	assert.Contains(t, sink.runs, "run-live")
}

func TestLogSinkEmitsStructuredFields(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))

	evt := progress.Event{
		RunID: "run-log",
		TS:    time.Now().UTC(),
		Stage: progress.StageRecordSaved,
		URL:   "https://jobs.example.com/job/a1",
	}
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{evt}))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "run-log", fields["run_id"])
	assert.Equal(t, string(progress.StageRecordSaved), fields["stage"])
	assert.Equal(t, "https://jobs.example.com/job/a1", fields["url"])
}
