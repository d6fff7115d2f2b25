// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures every service knob, loaded from file and environment.
// Environment variables use the JOBHOUND_ prefix with dots replaced by
// underscores (JOBHOUND_CRAWL_MAX_ITEMS overrides crawl.max_items).
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Crawl     CrawlConfig     `mapstructure:"crawl"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Identity  IdentityConfig  `mapstructure:"identity"`
	Extract   ExtractConfig   `mapstructure:"extract"`
	Sinks     SinksConfig     `mapstructure:"sinks"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Snapshots SnapshotsConfig `mapstructure:"snapshots"`
	Status    StatusConfig    `mapstructure:"status"`
}

// ServerConfig controls the ops API listener.
type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Auth AuthConfig `mapstructure:"auth"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// CrawlConfig governs one crawl run: the seed, its budgets, and the retry
// posture.
type CrawlConfig struct {
	// Keyword is the search term placed in the listing query. Ignored when
	// StartURL is set.
	Keyword string `mapstructure:"keyword"`
	// Region narrows the search geographically; empty regions are omitted
	// from the query entirely.
	Region string `mapstructure:"region"`
	// StartURL seeds the crawl directly. Its query string is preserved and
	// only the page parameter is replaced per listing page.
	StartURL string `mapstructure:"start_url"`
	// BaseURL is the listing endpoint searched when StartURL is empty.
	BaseURL string `mapstructure:"base_url"`

	KeywordParam string `mapstructure:"keyword_param"`
	RegionParam  string `mapstructure:"region_param"`
	PageParam    string `mapstructure:"page_param"`

	// MaxItems bounds saved records; zero means unlimited.
	MaxItems int `mapstructure:"max_items"`
	// MaxPages bounds listing pagination.
	MaxPages int `mapstructure:"max_pages"`
	// Concurrency sizes the worker pool.
	Concurrency int `mapstructure:"concurrency"`

	// MaxAttempts bounds retries per task.
	MaxAttempts int `mapstructure:"max_attempts"`
	// BackoffBaseMs is the first retry delay; doubles per attempt.
	BackoffBaseMs int `mapstructure:"backoff_base_ms"`
	// BackoffCapMs caps the computed delay.
	BackoffCapMs int `mapstructure:"backoff_cap_ms"`

	// BlockPhrases overrides the soft-block body phrase list.
	BlockPhrases []string `mapstructure:"block_phrases"`
	// AllowOffHost admits detail links pointing off the listing host.
	AllowOffHost bool `mapstructure:"allow_off_host"`
	// BlockedHosts refuses detail links on matching hosts.
	BlockedHosts []string `mapstructure:"blocked_hosts"`
	// SnapshotBlocked archives blocked and extraction-failed page bodies.
	SnapshotBlocked bool `mapstructure:"snapshot_blocked"`
}

// FetchConfig configures the plain HTTP transport and its politeness gates.
type FetchConfig struct {
	TimeoutSeconds int  `mapstructure:"timeout_seconds"`
	RespectRobots  bool `mapstructure:"respect_robots"`
	MaxBodyBytes   int  `mapstructure:"max_body_bytes"`
	// RatePerHost is the steady request rate per host; zero disables
	// limiting.
	RatePerHost float64 `mapstructure:"rate_per_host"`
	RateBurst   int     `mapstructure:"rate_burst"`
	// UserAgent is the fallback when an identity profile carries none.
	UserAgent string `mapstructure:"user_agent"`
}

// HeadlessConfig configures the rendering transport used for soft-block
// escalation.
type HeadlessConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	MaxParallel    int    `mapstructure:"max_parallel"`
	NavTimeoutSecs int    `mapstructure:"nav_timeout_seconds"`
	ProxyURL       string `mapstructure:"proxy_url"`
}

// IdentityConfig sizes the identity pool and its health thresholds.
type IdentityConfig struct {
	MaxIdentities int `mapstructure:"max_identities"`
	MaxUsage      int `mapstructure:"max_usage"`
	RetireScore   int `mapstructure:"retire_score"`
	// ProxyURLs optionally assigns identities stable proxies.
	ProxyURLs []string `mapstructure:"proxy_urls"`
}

// ExtractConfig overrides link recognition and the per-field selector
// cascades. Empty lists keep the built-in defaults.
type ExtractConfig struct {
	DetailPatterns []string        `mapstructure:"detail_patterns"`
	Selectors      SelectorsConfig `mapstructure:"selectors"`
}

// SelectorsConfig lists the heuristic-tier cascade per record field.
type SelectorsConfig struct {
	Title        []string `mapstructure:"title"`
	Company      []string `mapstructure:"company"`
	Location     []string `mapstructure:"location"`
	Compensation []string `mapstructure:"compensation"`
	PostedAt     []string `mapstructure:"posted_at"`
	Category     []string `mapstructure:"category"`
	Description  []string `mapstructure:"description"`
}

// SinksConfig selects where records are persisted. Several sinks may be
// active at once; records fan out to all of them.
type SinksConfig struct {
	// JSONLPath enables the JSON Lines file sink when non-empty.
	JSONLPath string `mapstructure:"jsonl_path"`
	// XLSXPath enables the spreadsheet sink when non-empty.
	XLSXPath string         `mapstructure:"xlsx_path"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig controls the Postgres record sink.
type PostgresConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PublisherConfig selects the record publisher.
type PublisherConfig struct {
	// Provider is one of noop, memory, pubsub.
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// SnapshotsConfig selects the debug-snapshot store.
type SnapshotsConfig struct {
	// Provider is one of noop, local, memory, gcs.
	Provider string `mapstructure:"provider"`
	BaseDir  string `mapstructure:"base_dir"`
	Bucket   string `mapstructure:"bucket"`
}

// StatusConfig selects the live run-progress store.
type StatusConfig struct {
	// Provider is one of memory, redis.
	Provider   string `mapstructure:"provider"`
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	Prefix     string `mapstructure:"prefix"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

// Load builds a Config from disk and environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JOBHOUND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.auth.enabled", false)
	v.SetDefault("logging.development", true)

	// Empty defaults register the seed keys so environment overrides
	// survive Unmarshal.
	v.SetDefault("crawl.keyword", "")
	v.SetDefault("crawl.region", "")
	v.SetDefault("crawl.start_url", "")
	v.SetDefault("crawl.base_url", "https://jooble.org/SearchResult")
	v.SetDefault("crawl.keyword_param", "ukw")
	v.SetDefault("crawl.region_param", "rgns")
	v.SetDefault("crawl.page_param", "p")
	v.SetDefault("crawl.max_items", 50)
	v.SetDefault("crawl.max_pages", 5)
	v.SetDefault("crawl.concurrency", 4)
	v.SetDefault("crawl.max_attempts", 4)
	v.SetDefault("crawl.backoff_base_ms", 1000)
	v.SetDefault("crawl.backoff_cap_ms", 30000)
	v.SetDefault("crawl.snapshot_blocked", false)

	v.SetDefault("fetch.timeout_seconds", 30)
	v.SetDefault("fetch.respect_robots", true)
	v.SetDefault("fetch.rate_per_host", 1.0)
	v.SetDefault("fetch.rate_burst", 2)

	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 45)

	v.SetDefault("identity.max_identities", 8)
	v.SetDefault("identity.max_usage", 40)
	v.SetDefault("identity.retire_score", 5)

	v.SetDefault("sinks.jsonl_path", "records.jsonl")
	v.SetDefault("sinks.postgres.enabled", false)
	v.SetDefault("sinks.postgres.table", "job_records")

	v.SetDefault("publisher.provider", "noop")
	v.SetDefault("snapshots.provider", "noop")
	v.SetDefault("snapshots.base_dir", "snapshots")

	v.SetDefault("status.provider", "memory")
	v.SetDefault("status.prefix", "jobhound:runs:")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.Auth.Enabled && c.Server.Auth.APIKey == "" {
		return fmt.Errorf("server.auth.api_key must be set when auth is enabled")
	}
	if c.Crawl.Concurrency <= 0 {
		return fmt.Errorf("crawl.concurrency must be > 0")
	}
	if c.Crawl.MaxPages <= 0 {
		return fmt.Errorf("crawl.max_pages must be > 0")
	}
	if c.Crawl.MaxItems < 0 {
		return fmt.Errorf("crawl.max_items must be >= 0")
	}
	if c.Crawl.MaxAttempts < 0 {
		return fmt.Errorf("crawl.max_attempts must be >= 0")
	}
	if c.Crawl.BackoffBaseMs > 0 && c.Crawl.BackoffCapMs > 0 &&
		c.Crawl.BackoffCapMs < c.Crawl.BackoffBaseMs {
		return fmt.Errorf("crawl.backoff_cap_ms must be >= crawl.backoff_base_ms")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Sinks.Postgres.Enabled && c.Sinks.Postgres.DSN == "" {
		return fmt.Errorf("sinks.postgres.dsn must be set when the postgres sink is enabled")
	}
	switch c.Publisher.Provider {
	case "", "noop", "memory":
	case "pubsub":
		if c.Publisher.ProjectID == "" || c.Publisher.TopicID == "" {
			return fmt.Errorf("publisher.project_id and publisher.topic_id must be set for pubsub")
		}
	default:
		return fmt.Errorf("unknown publisher provider %q", c.Publisher.Provider)
	}
	switch c.Snapshots.Provider {
	case "", "noop", "memory":
	case "local":
		if c.Snapshots.BaseDir == "" {
			return fmt.Errorf("snapshots.base_dir must be set for the local provider")
		}
	case "gcs":
		if c.Snapshots.Bucket == "" {
			return fmt.Errorf("snapshots.bucket must be set for the gcs provider")
		}
	default:
		return fmt.Errorf("unknown snapshots provider %q", c.Snapshots.Provider)
	}
	switch c.Status.Provider {
	case "", "memory":
	case "redis":
		if c.Status.Addr == "" {
			return fmt.Errorf("status.addr must be set for the redis provider")
		}
	default:
		return fmt.Errorf("unknown status provider %q", c.Status.Provider)
	}
	return nil
}

// FetchTimeout converts the configured fetch timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// BackoffBase converts the configured base retry delay into a duration.
func (c Config) BackoffBase() time.Duration {
	return time.Duration(c.Crawl.BackoffBaseMs) * time.Millisecond
}

// BackoffCap converts the configured retry delay cap into a duration.
func (c Config) BackoffCap() time.Duration {
	return time.Duration(c.Crawl.BackoffCapMs) * time.Millisecond
}
