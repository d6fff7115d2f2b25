package app_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobhound/internal/app"
	"jobhound/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		Server: config.ServerConfig{Port: 8080},
		Crawl: config.CrawlConfig{
			Keyword:     "golang",
			BaseURL:     "https://jobs.example.com/search",
			MaxItems:    10,
			MaxPages:    2,
			Concurrency: 2,
		},
		Fetch: config.FetchConfig{TimeoutSeconds: 5},
		Sinks: config.SinksConfig{
			JSONLPath: filepath.Join(dir, "records.jsonl"),
		},
		Publisher: config.PublisherConfig{Provider: "memory"},
		Snapshots: config.SnapshotsConfig{Provider: "memory"},
		Status:    config.StatusConfig{Provider: "memory"},
	}
}

func TestNewBuildsMemoryProviders(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, a.Close(context.Background()))
	}()

	assert.NotNil(t, a.Status())
	assert.NotNil(t, a.Hub())
	assert.NotNil(t, a.Registry())
	assert.NotNil(t, a.Logger())
}

func TestNewEnginePerRun(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, a.Close(context.Background()))
	}()

	first, err := a.NewEngine()
	require.NoError(t, err)
	second, err := a.NewEngine()
	require.NoError(t, err)

	// Engines are single-use; each run must get its own.
	assert.NotSame(t, first, second)
	assert.NotEqual(t, first.RunID(), second.RunID())
}

func TestNewRejectsMissingSink(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Sinks = config.SinksConfig{}

	_, err := app.New(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no record sink configured")
}

func TestNewRejectsUnknownProviders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(c *config.Config)
		want   string
	}{
		{
			name:   "publisher",
			mutate: func(c *config.Config) { c.Publisher.Provider = "kafka" },
			want:   "publisher provider",
		},
		{
			name:   "snapshots",
			mutate: func(c *config.Config) { c.Snapshots.Provider = "s3" },
			want:   "snapshots provider",
		},
		{
			name:   "status",
			mutate: func(c *config.Config) { c.Status.Provider = "etcd" },
			want:   "status provider",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig(t)
			tt.mutate(&cfg)
			_, err := app.New(context.Background(), cfg, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCloseIsIdempotentAfterStartupFailure(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Status.Provider = "bogus"

	// Startup fails after the sinks were already built; New must have
	// cleaned them up so nothing leaks.
	_, err := app.New(context.Background(), cfg, nil)
	require.Error(t, err)
}
