// Package app assembles the long-lived services a crawl needs: sinks,
// publisher, snapshot and status stores, transports, the identity pool, and
// the progress hub. It is the single place where provider-switch
// configuration turns into concrete implementations.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"jobhound/internal/config"
	"jobhound/internal/crawler"
	"jobhound/internal/extract"
	collyfetcher "jobhound/internal/fetcher/colly"
	"jobhound/internal/fetcher/headless"
	uuidgen "jobhound/internal/id/uuid"
	"jobhound/internal/identity"
	"jobhound/internal/progress"
	"jobhound/internal/progress/sinks"
	pubmem "jobhound/internal/publisher/memory"
	pubps "jobhound/internal/publisher/pubsub"
	"jobhound/internal/ratelimit"
	"jobhound/internal/sink"
	"jobhound/internal/sink/jsonl"
	sinkpg "jobhound/internal/sink/postgres"
	"jobhound/internal/sink/xlsx"
	"jobhound/internal/snapshot"
	snapgcs "jobhound/internal/snapshot/gcs"
	snaplocal "jobhound/internal/snapshot/local"
	snapmem "jobhound/internal/snapshot/memory"
	"jobhound/internal/status"
	statusmem "jobhound/internal/status/memory"
	statusredis "jobhound/internal/status/redis"
)

// App holds the shared services for one process. Build it once at startup,
// mint engines from it per run, and Close it on the way out.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	sinks      *sink.Multi
	publisher  crawler.Publisher
	snapshots  crawler.SnapshotStore
	status     status.Store
	hub        *progress.Hub
	registry   *prometheus.Registry
	fetcher    *collyfetcher.Fetcher
	headless   crawler.Fetcher
	identities *identity.Pool
	limiter    *ratelimit.Limiter
	extractor  *extract.Extractor

	closers []io.Closer
}

// New initializes every configured service, failing fast on the first one
// that cannot start.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}

	for _, build := range []func(context.Context) error{
		a.buildSinks,
		a.buildPublisher,
		a.buildSnapshots,
		a.buildStatus,
		a.buildHub,
		a.buildTransports,
	} {
		if err := build(ctx); err != nil {
			a.closeQuietly()
			return nil, err
		}
	}

	pool, err := identity.NewPool(identity.PoolConfig{
		MaxIdentities: cfg.Identity.MaxIdentities,
		MaxUsage:      cfg.Identity.MaxUsage,
		RetireScore:   cfg.Identity.RetireScore,
		ProxyURLs:     cfg.Identity.ProxyURLs,
	}, uuidgen.NewUUIDGenerator(), logger)
	if err != nil {
		a.closeQuietly()
		return nil, fmt.Errorf("init identity pool: %w", err)
	}
	a.identities = pool

	a.limiter = ratelimit.New(ratelimit.Config{
		RPS:   cfg.Fetch.RatePerHost,
		Burst: cfg.Fetch.RateBurst,
	})
	a.extractor = extract.New(extract.Config{
		DetailPatterns: cfg.Extract.DetailPatterns,
		Selectors: extract.FieldSelectors{
			Title:        cfg.Extract.Selectors.Title,
			Company:      cfg.Extract.Selectors.Company,
			Location:     cfg.Extract.Selectors.Location,
			Compensation: cfg.Extract.Selectors.Compensation,
			PostedAt:     cfg.Extract.Selectors.PostedAt,
			Category:     cfg.Extract.Selectors.Category,
			Description:  cfg.Extract.Selectors.Description,
		},
	}, logger)

	logger.Info("application services initialized",
		zap.Int("sinks", a.sinks.Len()),
		zap.String("publisher", providerOrDefault(cfg.Publisher.Provider, "noop")),
		zap.String("snapshots", providerOrDefault(cfg.Snapshots.Provider, "noop")),
		zap.String("status", providerOrDefault(cfg.Status.Provider, "memory")),
	)
	return a, nil
}

// NewEngine builds a fresh single-use engine for one crawl run.
func (a *App) NewEngine() (*crawler.Engine, error) {
	cfg := a.cfg
	engine, err := crawler.New(crawler.Config{
		Seeds: crawler.Seeds{
			BaseURL:      cfg.Crawl.BaseURL,
			StartURL:     cfg.Crawl.StartURL,
			Keyword:      cfg.Crawl.Keyword,
			Region:       cfg.Crawl.Region,
			KeywordParam: cfg.Crawl.KeywordParam,
			RegionParam:  cfg.Crawl.RegionParam,
			PageParam:    cfg.Crawl.PageParam,
		},
		MaxPages:        cfg.Crawl.MaxPages,
		MaxItems:        cfg.Crawl.MaxItems,
		Workers:         cfg.Crawl.Concurrency,
		AllowOffHost:    cfg.Crawl.AllowOffHost,
		BlockedHosts:    cfg.Crawl.BlockedHosts,
		BlockPhrases:    cfg.Crawl.BlockPhrases,
		SnapshotBlocked: cfg.Crawl.SnapshotBlocked,
	}, crawler.Deps{
		Fetcher:    a.fetcher,
		Headless:   a.headless,
		Links:      a.extractor,
		Records:    a.extractor,
		Sink:       a.sinks,
		Publisher:  a.publisher,
		Snapshots:  a.snapshots,
		Identities: a.identities,
		Limiter:    a.limiter,
		Retries:    crawler.NewRetryController(cfg.Crawl.MaxAttempts, cfg.BackoffBase(), cfg.BackoffCap()),
		Progress:   a.hub,
		Logger:     a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	return engine, nil
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Status exposes the run-progress store for the ops API.
func (a *App) Status() status.Store {
	return a.status
}

// Registry exposes the process Prometheus registry for the ops API.
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

// Hub returns the progress hub engines emit into.
func (a *App) Hub() *progress.Hub {
	return a.hub
}

// Close drains the progress hub and shuts every service down, newest first.
func (a *App) Close(ctx context.Context) error {
	var err error
	if a.hub != nil {
		err = multierr.Append(err, a.hub.Close(ctx))
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i].Close())
	}
	a.closers = nil
	return err
}

func (a *App) buildSinks(ctx context.Context) error {
	var members []crawler.RecordSink

	if path := a.cfg.Sinks.JSONLPath; path != "" {
		s, err := jsonl.New(path)
		if err != nil {
			return fmt.Errorf("init jsonl sink: %w", err)
		}
		a.closers = append(a.closers, s)
		members = append(members, s)
		a.logger.Info("jsonl sink enabled", zap.String("path", path))
	}
	if path := a.cfg.Sinks.XLSXPath; path != "" {
		s, err := xlsx.New(path)
		if err != nil {
			return fmt.Errorf("init xlsx sink: %w", err)
		}
		a.closers = append(a.closers, s)
		members = append(members, s)
		a.logger.Info("xlsx sink enabled", zap.String("path", path))
	}
	if pg := a.cfg.Sinks.Postgres; pg.Enabled {
		s, err := sinkpg.New(ctx, sinkpg.Config{
			DSN:      pg.DSN,
			Table:    pg.Table,
			MaxConns: pg.MaxConns,
		})
		if err != nil {
			return fmt.Errorf("init postgres sink: %w", err)
		}
		a.closers = append(a.closers, s)
		members = append(members, s)
		a.logger.Info("postgres sink enabled", zap.String("table", pg.Table))
	}
	if len(members) == 0 {
		return fmt.Errorf("no record sink configured")
	}
	a.sinks = sink.NewMulti(members...)
	return nil
}

func (a *App) buildPublisher(ctx context.Context) error {
	switch a.cfg.Publisher.Provider {
	case "", "noop":
		a.publisher = nil
	case "memory":
		a.publisher = pubmem.New()
	case "pubsub":
		p, err := pubps.New(ctx, a.cfg.Publisher.ProjectID, a.cfg.Publisher.TopicID)
		if err != nil {
			return fmt.Errorf("init pubsub publisher: %w", err)
		}
		a.closers = append(a.closers, p)
		a.publisher = p
		a.logger.Info("pubsub publisher enabled", zap.String("topic", a.cfg.Publisher.TopicID))
	default:
		return fmt.Errorf("unknown publisher provider %q", a.cfg.Publisher.Provider)
	}
	return nil
}

func (a *App) buildSnapshots(ctx context.Context) error {
	switch a.cfg.Snapshots.Provider {
	case "", "noop":
		a.snapshots = snapshot.Noop{}
	case "memory":
		a.snapshots = snapmem.New()
	case "local":
		s, err := snaplocal.New(snaplocal.Config{BaseDir: a.cfg.Snapshots.BaseDir})
		if err != nil {
			return fmt.Errorf("init local snapshot store: %w", err)
		}
		a.snapshots = s
	case "gcs":
		s, err := snapgcs.New(ctx, snapgcs.Config{Bucket: a.cfg.Snapshots.Bucket})
		if err != nil {
			return fmt.Errorf("init gcs snapshot store: %w", err)
		}
		a.closers = append(a.closers, s)
		a.snapshots = s
		a.logger.Info("gcs snapshot store enabled", zap.String("bucket", a.cfg.Snapshots.Bucket))
	default:
		return fmt.Errorf("unknown snapshots provider %q", a.cfg.Snapshots.Provider)
	}
	return nil
}

func (a *App) buildStatus(ctx context.Context) error {
	switch a.cfg.Status.Provider {
	case "", "memory":
		s := statusmem.New()
		a.closers = append(a.closers, s)
		a.status = s
	case "redis":
		s, err := statusredis.New(ctx, statusredis.Config{
			Addr:     a.cfg.Status.Addr,
			Password: a.cfg.Status.Password,
			DB:       a.cfg.Status.DB,
			Prefix:   a.cfg.Status.Prefix,
			TTL:      time.Duration(a.cfg.Status.TTLSeconds) * time.Second,
		})
		if err != nil {
			return fmt.Errorf("init redis status store: %w", err)
		}
		a.closers = append(a.closers, s)
		a.status = s
		a.logger.Info("redis status store enabled", zap.String("addr", a.cfg.Status.Addr))
	default:
		return fmt.Errorf("unknown status provider %q", a.cfg.Status.Provider)
	}
	return nil
}

func (a *App) buildHub(context.Context) error {
	promSink, err := sinks.NewPrometheusSink(a.registry)
	if err != nil {
		return fmt.Errorf("init prometheus progress sink: %w", err)
	}
	a.hub = progress.NewHub(progress.Config{Logger: a.logger},
		sinks.NewLogSink(a.logger),
		promSink,
		sinks.NewStatusSink(a.status, a.logger),
	)
	return nil
}

func (a *App) buildTransports(context.Context) error {
	a.fetcher = collyfetcher.New(collyfetcher.Config{
		UserAgent:     a.cfg.Fetch.UserAgent,
		RespectRobots: a.cfg.Fetch.RespectRobots,
		Timeout:       a.cfg.FetchTimeout(),
		MaxBodyBytes:  a.cfg.Fetch.MaxBodyBytes,
	})

	if !a.cfg.Headless.Enabled {
		return nil
	}
	h, err := headless.NewChromedp(headless.Config{
		MaxParallel:       a.cfg.Headless.MaxParallel,
		UserAgent:         a.cfg.Fetch.UserAgent,
		ProxyURL:          a.cfg.Headless.ProxyURL,
		NavigationTimeout: time.Duration(a.cfg.Headless.NavTimeoutSecs) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("init headless fetcher: %w", err)
	}
	a.closers = append(a.closers, closerFunc(func() error { h.Close(); return nil }))
	a.headless = h
	a.logger.Info("headless escalation enabled", zap.Int("max_parallel", a.cfg.Headless.MaxParallel))
	return nil
}

func (a *App) closeQuietly() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("close service during failed startup", zap.Error(err))
		}
	}
	a.closers = nil
}

func providerOrDefault(p, def string) string {
	if p == "" {
		return def
	}
	return p
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
