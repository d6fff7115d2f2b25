package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"jobhound/internal/clock/system"
	"jobhound/internal/hash/sha256"
	uuidgen "jobhound/internal/id/uuid"
	"jobhound/internal/identity"
	"jobhound/internal/progress"
	"jobhound/internal/snapshot"
)

const snapshotContentType = "text/html; charset=utf-8"

// Config holds the crawl-scoped settings for one engine run.
type Config struct {
	// RunID labels logs, events, and snapshot paths; generated when empty.
	RunID string
	// Seeds builds the listing-page URLs.
	Seeds Seeds
	// MaxPages bounds listing pagination. Default 1.
	MaxPages int
	// MaxItems bounds saved records; 0 means unlimited.
	MaxItems int
	// Workers sizes the fixed goroutine pool. Default 4.
	Workers int
	// AllowOffHost admits detail links pointing off the listing host.
	AllowOffHost bool
	// BlockedHosts refuses detail links on matching hosts. Exact names or
	// suffix wildcards ("*.example.net").
	BlockedHosts []string
	// BlockPhrases overrides the soft-block body phrases.
	BlockPhrases []string
	// SnapshotBlocked archives blocked and extraction-failed page bodies.
	SnapshotBlocked bool
}

func (c *Config) applyDefaults() {
	if c.MaxPages <= 0 {
		c.MaxPages = 1
	}
	if c.MaxItems < 0 {
		c.MaxItems = 0
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
}

// Deps carries the engine's collaborators. Fetcher, Links, Records, Sink,
// and Identities are required; the rest default or stay disabled when nil.
type Deps struct {
	// Fetcher is the plain HTTP transport.
	Fetcher Fetcher
	// Headless, when non-nil, serves soft-block retries through a rendering
	// transport. Nil disables escalation entirely.
	Headless Fetcher
	// Links discovers detail links on listing pages.
	Links LinkExtractor
	// Records maps detail markup to records.
	Records RecordExtractor
	// Sink receives every valid record.
	Sink RecordSink
	// Publisher, when non-nil, receives every saved record.
	Publisher Publisher
	// Snapshots, when non-nil and enabled by config, archives page bodies.
	Snapshots SnapshotStore
	// Identities hands out crawl personas.
	Identities IdentitySource
	// Limiter throttles fetches per host; nil disables throttling.
	Limiter RateLimiter
	// Classifier defaults to NewClassifier(cfg.BlockPhrases).
	Classifier *Classifier
	// Retries defaults to NewRetryController defaults.
	Retries *RetryController
	// Progress receives milestone events; nil discards them.
	Progress ProgressEmitter
	// IDs mints the run ID when cfg.RunID is empty.
	IDs identity.IDGenerator
	// Clock defaults to the system clock.
	Clock Clock
	// Hasher digests URLs for snapshot paths; defaults to SHA-256.
	Hasher Hasher
	// Logger defaults to a nop logger.
	Logger *zap.Logger
}

// Engine drives one crawl run: a fixed worker pool pulls tasks from the
// deduplicating frontier, fetches through pooled identities, classifies each
// outcome, and either extracts, retries with backoff, or abandons. An Engine
// is single-use; build a fresh one per run.
type Engine struct {
	cfg        Config
	fetcher    Fetcher
	headless   Fetcher
	links      LinkExtractor
	records    RecordExtractor
	sink       RecordSink
	publisher  Publisher
	snapshots  SnapshotStore
	identities IdentitySource
	limiter    RateLimiter
	classifier *Classifier
	retries    *RetryController
	progress   ProgressEmitter
	clock      Clock
	hasher     Hasher
	logger     *zap.Logger

	budget     *Budget
	frontier   *Frontier
	linkPolicy *LinkPolicy

	runID    string
	site     string
	firstURL string

	timers         sync.WaitGroup
	abandonedTasks atomic.Int64
}

// New validates configuration and dependencies and builds an engine.
func New(cfg Config, deps Deps) (*Engine, error) {
	cfg.applyDefaults()

	if deps.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if deps.Links == nil {
		return nil, fmt.Errorf("link extractor is required")
	}
	if deps.Records == nil {
		return nil, fmt.Errorf("record extractor is required")
	}
	if deps.Sink == nil {
		return nil, fmt.Errorf("record sink is required")
	}
	if deps.Identities == nil {
		return nil, fmt.Errorf("identity source is required")
	}
	if err := cfg.Seeds.Validate(); err != nil {
		return nil, fmt.Errorf("seeds: %w", err)
	}
	firstURL, err := cfg.Seeds.PageURL(1)
	if err != nil {
		return nil, fmt.Errorf("seed listing url: %w", err)
	}

	runID := cfg.RunID
	if runID == "" {
		ids := deps.IDs
		if ids == nil {
			ids = uuidgen.NewUUIDGenerator()
		}
		runID, err = ids.NewID()
		if err != nil {
			return nil, fmt.Errorf("generate run id: %w", err)
		}
	}

	if deps.Classifier == nil {
		deps.Classifier = NewClassifier(cfg.BlockPhrases)
	}
	if deps.Retries == nil {
		deps.Retries = NewRetryController(0, 0, 0)
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if deps.Hasher == nil {
		deps.Hasher = sha256.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	budget := NewBudget(cfg.MaxItems)
	return &Engine{
		cfg:        cfg,
		fetcher:    deps.Fetcher,
		headless:   deps.Headless,
		links:      deps.Links,
		records:    deps.Records,
		sink:       deps.Sink,
		publisher:  deps.Publisher,
		snapshots:  deps.Snapshots,
		identities: deps.Identities,
		limiter:    deps.Limiter,
		classifier: deps.Classifier,
		retries:    deps.Retries,
		progress:   deps.Progress,
		clock:      deps.Clock,
		hasher:     deps.Hasher,
		logger:     deps.Logger,
		budget:     budget,
		frontier:   NewFrontier(budget),
		linkPolicy: NewLinkPolicy(cfg.AllowOffHost, cfg.BlockedHosts),
		runID:      runID,
		site:       Host(firstURL),
		firstURL:   firstURL,
	}, nil
}

// RunID returns the identifier assigned to this run.
func (e *Engine) RunID() string {
	return e.runID
}

// Run seeds the first listing page and blocks until the crawl completes or
// ctx is canceled. The returned RunResult is valid in both cases; the error
// is non-nil only on cancellation or when seeding fails.
func (e *Engine) Run(ctx context.Context) (RunResult, error) {
	start := e.clock.Now()
	e.emit(progress.Event{Stage: progress.StageRunStart, Site: e.site, URL: e.firstURL})
	e.logger.Info("crawl run starting",
		zap.String("run_id", e.runID),
		zap.String("url", e.firstURL),
		zap.Int("workers", e.cfg.Workers),
		zap.Int("max_pages", e.cfg.MaxPages),
		zap.Int("max_items", e.cfg.MaxItems),
	)

	if !e.frontier.Enqueue(Task{URL: e.firstURL, Kind: KindListing, PageNumber: 1}) {
		return RunResult{}, fmt.Errorf("seed url %q rejected by frontier", e.firstURL)
	}

	// Cancellation reaches blocked workers by closing the frontier.
	stop := context.AfterFunc(ctx, e.frontier.Close)
	defer stop()

	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.workerLoop(ctx)
		}()
	}
	wg.Wait()
	e.timers.Wait()

	snap := e.budget.Snapshot()
	result := RunResult{
		ItemsSaved:     snap.ItemsSaved,
		PagesVisited:   snap.PagesVisited,
		TasksAbandoned: int(e.abandonedTasks.Load()),
		Duration:       e.clock.Now().Sub(start),
	}

	if err := ctx.Err(); err != nil {
		e.emit(progress.Event{Stage: progress.StageRunError, Site: e.site, Note: err.Error(), Dur: result.Duration})
		e.logger.Warn("crawl run canceled",
			zap.String("run_id", e.runID),
			zap.Int("items_saved", result.ItemsSaved),
			zap.Int("pages_visited", result.PagesVisited),
		)
		return result, err
	}

	e.emit(progress.Event{Stage: progress.StageRunDone, Site: e.site, Dur: result.Duration})
	e.logger.Info("crawl run finished",
		zap.String("run_id", e.runID),
		zap.Int("items_saved", result.ItemsSaved),
		zap.Int("pages_visited", result.PagesVisited),
		zap.Int("tasks_abandoned", result.TasksAbandoned),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// Stats exposes frontier counters for the progress API.
func (e *Engine) Stats() FrontierStats {
	return e.frontier.Stats()
}

func (e *Engine) workerLoop(ctx context.Context) {
	for {
		task, ok := e.frontier.Dequeue()
		if !ok {
			return
		}
		e.processTask(ctx, task)
	}
}

// processTask runs one attempt of one task through fetch, classification,
// and the retry decision. Every path either reports the task done or hands
// it to the retry scheduler, which keeps it live.
func (e *Engine) processTask(ctx context.Context, task Task) {
	res, class, err := e.attempt(ctx, task)
	if err != nil {
		// Robots denial is terminal on the spot: no retry budget, no
		// identity damage.
		e.dropTask(task, "robots_disallowed", err.Error())
		e.frontier.TaskDone()
		return
	}

	e.observeFetch(task, res, class)

	if class == ClassOK {
		if task.Kind == KindListing {
			e.handleListing(ctx, task, res)
		} else {
			e.handleDetail(ctx, task, res)
		}
		e.frontier.TaskDone()
		return
	}

	e.maybeSnapshot(ctx, task, res, string(class))

	dec := e.retries.Decide(class, task.Attempt)
	if dec.Action == ActionRetry {
		e.scheduleRetry(ctx, task, class, dec.Delay)
		return
	}
	e.dropTask(task, string(class), "attempts exhausted")
	e.frontier.TaskDone()
}

// attempt performs one fetch through a leased identity. The returned error is
// non-nil only for robots denial; every other failure is folded into the
// result so classification stays uniform.
func (e *Engine) attempt(ctx context.Context, task Task) (FetchResult, Classification, error) {
	host := Host(task.URL)

	id, err := e.identities.Acquire(ctx, host)
	if err != nil {
		res := FetchResult{URL: task.URL, Err: fmt.Errorf("acquire identity: %w", err)}
		return res, e.classifier.Classify(res), nil
	}
	defer e.identities.Release(id)

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx, host); err != nil {
			res := FetchResult{URL: task.URL, Err: err}
			return res, e.classifier.Classify(res), nil
		}
	}

	transport := e.fetcher
	if task.UseHeadless && e.headless != nil {
		transport = e.headless
	}
	res, err := transport.Fetch(ctx, FetchRequest{
		URL:      task.URL,
		Referer:  task.Referer,
		Headers:  id.Header(),
		Cookies:  id.Cookies(),
		ProxyURL: id.ProxyURL,
	})
	if err != nil {
		if errors.Is(err, ErrRobotsDisallowed) {
			return res, "", err
		}
		res.Err = err
		if res.URL == "" {
			res.URL = task.URL
		}
	}

	e.identities.IngestCookies(id, res.Headers)
	class := e.classifier.Classify(res)
	e.identities.RecordOutcome(id, outcomeForClass(class))
	return res, class, nil
}

// handleListing counts the page, admits discovered detail links, and decides
// whether pagination continues. The next listing page is enqueued only while
// this one produced new links and the item budget still admits work.
func (e *Engine) handleListing(ctx context.Context, task Task, res FetchResult) {
	e.budget.PageVisited()

	base := res.FinalURL
	if base == "" {
		base = task.URL
	}
	links := e.links.Links(res.Body, base)

	admitted := 0
	for _, link := range links {
		if !e.budget.AdmitMore() {
			break
		}
		if !e.linkPolicy.Allow(Host(task.URL), link) {
			continue
		}
		if e.frontier.Enqueue(Task{URL: link, Kind: KindDetail, PageNumber: task.PageNumber, Referer: task.URL}) {
			admitted++
		}
	}

	e.logger.Info("listing page processed",
		zap.String("url", task.URL),
		zap.Int("page", task.PageNumber),
		zap.Int("links_found", len(links)),
		zap.Int("links_admitted", admitted),
	)
	e.emit(progress.Event{
		Stage: progress.StagePageDone,
		Site:  e.site,
		URL:   task.URL,
		Kind:  string(KindListing),
		Links: admitted,
	})

	if admitted == 0 || task.PageNumber >= e.cfg.MaxPages || !e.budget.AdmitMore() {
		return
	}
	next, err := e.cfg.Seeds.PageURL(task.PageNumber + 1)
	if err != nil {
		e.logger.Warn("build next listing url", zap.Int("page", task.PageNumber+1), zap.Error(err))
		return
	}
	e.frontier.Enqueue(Task{URL: next, Kind: KindListing, PageNumber: task.PageNumber + 1, Referer: task.URL})
}

// handleDetail extracts a record, applies the validity gate, and saves. The
// reserved budget slot is committed on save and released on any miss.
func (e *Engine) handleDetail(ctx context.Context, task Task, res FetchResult) {
	rec := e.records.Record(res.Body, task.URL)
	rec.PageNumber = task.PageNumber
	rec.FetchedAt = e.clock.Now()

	if !rec.Valid() {
		TotalExtractionFailures.Inc()
		e.maybeSnapshot(ctx, task, res, "extraction_failure")
		e.dropTask(task, "extraction_failure", "no title extracted")
		return
	}

	if err := e.sink.Save(ctx, rec); err != nil {
		e.logger.Error("save record failed", zap.String("url", task.URL), zap.Error(err))
		e.dropTask(task, "sink_error", err.Error())
		return
	}

	e.budget.CommitSaved()
	e.emit(progress.Event{Stage: progress.StageRecordSaved, Site: e.site, URL: task.URL, Kind: string(KindDetail)})
	e.logger.Info("record saved",
		zap.String("url", task.URL),
		zap.String("title", rec.Title),
		zap.Int("page", task.PageNumber),
	)

	if e.publisher != nil {
		msgID, err := e.publisher.Publish(ctx, rec)
		if err != nil {
			e.logger.Error("publish record failed", zap.String("url", task.URL), zap.Error(err))
			return
		}
		e.logger.Debug("record published", zap.String("url", task.URL), zap.String("message_id", msgID))
	}
}

// scheduleRetry re-admits the task after its backoff delay without holding a
// worker. A soft block escalates the next attempt to the headless transport
// when one is wired.
func (e *Engine) scheduleRetry(ctx context.Context, task Task, class Classification, delay time.Duration) {
	next := task
	next.Attempt++
	if class == ClassSoftBlock && e.headless != nil {
		next.UseHeadless = true
	}

	e.emit(progress.Event{
		Stage:          progress.StageTaskRetry,
		Site:           e.site,
		URL:            task.URL,
		Kind:           string(task.Kind),
		Classification: string(class),
		Attempt:        next.Attempt,
		Dur:            delay,
	})
	e.logger.Warn("task retry scheduled",
		zap.String("url", task.URL),
		zap.String("classification", string(class)),
		zap.Int("attempt", next.Attempt),
		zap.Duration("delay", delay),
		zap.Bool("headless", next.UseHeadless),
	)

	timer := time.NewTimer(delay)
	e.timers.Add(1)
	go func() {
		defer e.timers.Done()
		defer timer.Stop()
		select {
		case <-ctx.Done():
			e.dropTask(next, string(class), "run canceled")
			e.frontier.TaskDone()
		case <-timer.C:
			if !e.frontier.Requeue(next) {
				e.dropTask(next, string(class), "frontier closed")
				e.frontier.TaskDone()
			}
		}
	}()
}

// dropTask records a task reaching a terminal state short of its goal. The
// caller still owns the frontier liveness transition.
func (e *Engine) dropTask(task Task, classification, note string) {
	if task.Kind == KindDetail {
		e.budget.ReleasePlanned()
	}
	e.abandonedTasks.Add(1)
	e.emit(progress.Event{
		Stage:          progress.StageTaskAbandoned,
		Site:           e.site,
		URL:            task.URL,
		Kind:           string(task.Kind),
		Classification: classification,
		Attempt:        task.Attempt,
		Note:           note,
	})
	e.logger.Warn("task abandoned",
		zap.String("url", task.URL),
		zap.String("kind", string(task.Kind)),
		zap.String("classification", classification),
		zap.Int("attempt", task.Attempt),
		zap.String("note", note),
	)
}

func (e *Engine) observeFetch(task Task, res FetchResult, class Classification) {
	statusClass := progress.ClassifyStatus(res.StatusCode)
	TotalClassifications.WithLabelValues(string(class)).Inc()

	e.emit(progress.Event{
		Stage:          progress.StageFetchDone,
		Site:           e.site,
		URL:            task.URL,
		Kind:           string(task.Kind),
		StatusClass:    statusClass,
		Classification: string(class),
		Attempt:        task.Attempt,
		Bytes:          int64(len(res.Body)),
		Dur:            res.Duration,
	})
}

func (e *Engine) maybeSnapshot(ctx context.Context, task Task, res FetchResult, reason string) {
	if !e.cfg.SnapshotBlocked || e.snapshots == nil || len(res.Body) == 0 {
		return
	}
	digest, err := e.hasher.Hash([]byte(task.URL))
	if err != nil {
		e.logger.Debug("hash snapshot key", zap.Error(err))
		return
	}
	uri, err := e.snapshots.Put(ctx, snapshot.Key(e.runID, string(task.Kind), digest), snapshotContentType, res.Body)
	if err != nil {
		e.logger.Warn("archive snapshot failed", zap.String("url", task.URL), zap.Error(err))
		return
	}
	e.logger.Debug("page snapshot archived",
		zap.String("url", task.URL),
		zap.String("uri", uri),
		zap.String("reason", reason),
	)
}

// emit stamps run identity and time onto an event and hands it off.
func (e *Engine) emit(evt progress.Event) {
	if e.progress == nil {
		return
	}
	evt.RunID = e.runID
	evt.TS = e.clock.Now()
	e.progress.Emit(evt)
}

func outcomeForClass(class Classification) identity.Outcome {
	switch class {
	case ClassOK:
		return identity.OutcomeSuccess
	case ClassSoftBlock:
		return identity.OutcomeSoftBlock
	case ClassHardBlock:
		return identity.OutcomeHardBlock
	default:
		return identity.OutcomeTransportError
	}
}
