// Package postgres persists records into a Postgres table.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobhound/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "job_records"

// Config controls the Postgres connection pool used for record rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Sink writes records into Postgres, upserting on source URL so re-crawls
// refresh rather than duplicate.
type Sink struct {
	pool  execCloser
	table string
}

// New creates a Postgres-backed Sink using the provided config.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Sink{pool: pool, table: table}, nil
}

// NewWithPool constructs a Sink from an existing pool (primarily for
// testing).
func NewWithPool(pool execCloser, table string) (*Sink, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Sink{pool: pool, table: table}, nil
}

// EnsureSchema creates the records table when it does not exist yet.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	source_url       TEXT PRIMARY KEY,
	title            TEXT NOT NULL,
	company          TEXT NOT NULL DEFAULT '',
	location         TEXT NOT NULL DEFAULT '',
	compensation     TEXT NOT NULL DEFAULT '',
	posted_at        TEXT NOT NULL DEFAULT '',
	category         TEXT NOT NULL DEFAULT '',
	description_text TEXT NOT NULL DEFAULT '',
	description_html TEXT NOT NULL DEFAULT '',
	page_number      INTEGER NOT NULL DEFAULT 0,
	fetched_at       TIMESTAMPTZ NOT NULL
);`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure schema for %s: %w", s.table, err)
	}
	return nil
}

// Save upserts one record row.
func (s *Sink) Save(ctx context.Context, rec crawler.Record) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("postgres sink is not configured")
	}
	if rec.SourceURL == "" {
		return fmt.Errorf("record source url is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	source_url,
	title,
	company,
	location,
	compensation,
	posted_at,
	category,
	description_text,
	description_html,
	page_number,
	fetched_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (source_url) DO UPDATE SET
	title = EXCLUDED.title,
	company = EXCLUDED.company,
	location = EXCLUDED.location,
	compensation = EXCLUDED.compensation,
	posted_at = EXCLUDED.posted_at,
	category = EXCLUDED.category,
	description_text = EXCLUDED.description_text,
	description_html = EXCLUDED.description_html,
	page_number = EXCLUDED.page_number,
	fetched_at = EXCLUDED.fetched_at;`, s.table)

	_, err := s.pool.Exec(ctx, query,
		rec.SourceURL,
		rec.Title,
		rec.Company,
		rec.Location,
		rec.Compensation,
		rec.PostedAt,
		rec.Category,
		rec.DescriptionText,
		rec.DescriptionHTML,
		rec.PageNumber,
		rec.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("insert record %s: %w", rec.SourceURL, err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *Sink) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}
