// Package redis provides a Redis-backed status store so progress survives
// process restarts and can be read by other instances.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"jobhound/internal/status"
)

const defaultPrefix = "jobhound:run:"

// Config controls the Redis client and key layout.
type Config struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces run keys; the listing index lives at Prefix+"index".
	Prefix string
	// TTL expires run snapshots; zero keeps them forever.
	TTL time.Duration
}

// Store keeps run snapshots as JSON values with a sorted-set index for
// listing by start time.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New connects a client and verifies it with a ping.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Store{client: client, prefix: prefix, ttl: cfg.TTL}, nil
}

// PutRun replaces the snapshot for run.ID and indexes it by start time.
func (s *Store) PutRun(ctx context.Context, run status.Run) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run %s: %w", run.ID, err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.runKey(run.ID), payload, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{
		Score:  float64(run.StartedAt.UnixNano()),
		Member: run.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun returns the snapshot and whether it exists.
func (s *Store) GetRun(ctx context.Context, runID string) (status.Run, bool, error) {
	val, err := s.client.Get(ctx, s.runKey(runID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return status.Run{}, false, nil
		}
		return status.Run{}, false, fmt.Errorf("get run %s: %w", runID, err)
	}
	var run status.Run
	if err := json.Unmarshal([]byte(val), &run); err != nil {
		return status.Run{}, false, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return run, true, nil
}

// ListRuns returns up to limit runs, most recently started first. Runs whose
// snapshot expired are skipped.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]status.Run, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	runs := make([]status.Run, 0, len(ids))
	for _, id := range ids {
		run, ok, err := s.GetRun(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			runs = append(runs, run)
		}
	}
	return runs, nil
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) runKey(runID string) string {
	return s.prefix + runID
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}
