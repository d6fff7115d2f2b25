package identity

import (
	"context"
	"fmt"
	"hash/fnv"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Outcome grades one fetch attempt for health accounting.
type Outcome int

// Outcomes in escalating order of identity damage.
const (
	OutcomeSuccess Outcome = iota
	OutcomeTransportError
	OutcomeSoftBlock
	OutcomeHardBlock
)

// Score deltas per outcome. A hard block burns the identity outright; a soft
// block means its consent/cookie state is stale, so the jar is cleared too.
const (
	scoreSuccessCredit  = 1
	scoreTransportDebit = 1
	scoreSoftDebit      = 2
)

// Identity is one crawl persona. Mutable state is guarded by its own mutex;
// the pool serializes in-flight use so two tasks never share an identity
// concurrently.
type Identity struct {
	ID       string
	Profile  Profile
	ProxyURL string

	mu         sync.Mutex
	cookies    map[string]string
	usageCount int
	errorScore int
	retired    bool
	inFlight   bool
	lastUsed   time.Time
}

// Header returns the profile's request headers. Cookies travel separately so
// transports can install them per scheme.
func (id *Identity) Header() http.Header {
	return id.Profile.Header()
}

// Cookies returns a copy of the accumulated jar.
func (id *Identity) Cookies() map[string]string {
	id.mu.Lock()
	defer id.mu.Unlock()
	jar := make(map[string]string, len(id.cookies))
	for k, v := range id.cookies {
		jar[k] = v
	}
	return jar
}

// UsageCount reports completed uses.
func (id *Identity) UsageCount() int {
	id.mu.Lock()
	defer id.mu.Unlock()
	return id.usageCount
}

// ErrorScore reports the accumulated health debit.
func (id *Identity) ErrorScore() int {
	id.mu.Lock()
	defer id.mu.Unlock()
	return id.errorScore
}

// Retired reports whether the identity has been permanently withdrawn.
func (id *Identity) Retired() bool {
	id.mu.Lock()
	defer id.mu.Unlock()
	return id.retired
}

// IDGenerator mints identity IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// PoolConfig sizes the pool and its health thresholds.
type PoolConfig struct {
	// MaxIdentities bounds the pool. The bound is soft: when every identity
	// is simultaneously in flight the pool allocates past it rather than
	// deadlock the workers. Default 8.
	MaxIdentities int
	// MaxUsage retires an identity after this many uses. Default 40.
	MaxUsage int
	// RetireScore retires an identity once its errorScore reaches it.
	// Default 5.
	RetireScore int
	// Profiles overrides the device catalog; empty means DefaultProfiles.
	Profiles []Profile
	// ProxyURLs optionally assigns each identity a stable proxy.
	ProxyURLs []string
}

func (c *PoolConfig) applyDefaults() {
	if c.MaxIdentities <= 0 {
		c.MaxIdentities = 8
	}
	if c.MaxUsage <= 0 {
		c.MaxUsage = 40
	}
	if c.RetireScore <= 0 {
		c.RetireScore = 5
	}
	if len(c.Profiles) == 0 {
		c.Profiles = DefaultProfiles
	}
}

// PoolStats is a point-in-time view for logs and the progress API.
type PoolStats struct {
	Created int
	Active  int
	Retired int
}

// Pool owns every identity. Acquisition is sticky per key (normally the
// target host) so cookie state stays coherent across a site's tasks, and
// leased so a single identity is never in flight twice.
type Pool struct {
	cfg    PoolConfig
	ids    IDGenerator
	logger *zap.Logger

	mu          sync.Mutex
	identities  []*Identity
	sticky      map[string]*Identity
	created     int
	retired     int
	nextProfile int
}

// NewPool constructs a pool. ids must not be nil.
func NewPool(cfg PoolConfig, ids IDGenerator, logger *zap.Logger) (*Pool, error) {
	if ids == nil {
		return nil, fmt.Errorf("id generator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()
	return &Pool{
		cfg:    cfg,
		ids:    ids,
		logger: logger,
		sticky: make(map[string]*Identity),
	}, nil
}

// Acquire leases a non-retired identity. A sticky hit is returned for
// continuity unless it is currently in flight, in which case another
// identity serves the request and the key is repointed at it.
func (p *Pool) Acquire(ctx context.Context, stickyKey string) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("acquire identity: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if stickyKey != "" {
		if id, ok := p.sticky[stickyKey]; ok {
			if p.leasable(id) {
				p.lease(id)
				return id, nil
			}
			if id.Retired() {
				delete(p.sticky, stickyKey)
			}
		}
	}

	if id := p.idlest(); id != nil {
		p.lease(id)
		if stickyKey != "" {
			p.sticky[stickyKey] = id
		}
		return id, nil
	}

	id, err := p.allocate()
	if err != nil {
		return nil, err
	}
	p.lease(id)
	if stickyKey != "" {
		p.sticky[stickyKey] = id
	}
	return id, nil
}

// Release ends an identity's in-flight lease.
func (p *Pool) Release(id *Identity) {
	if id == nil {
		return
	}
	id.mu.Lock()
	id.inFlight = false
	id.lastUsed = time.Now()
	id.mu.Unlock()
}

// RecordOutcome applies one attempt's result to the identity's health.
func (p *Pool) RecordOutcome(id *Identity, outcome Outcome) {
	if id == nil {
		return
	}
	id.mu.Lock()
	id.usageCount++
	switch outcome {
	case OutcomeSuccess:
		if id.errorScore > 0 {
			id.errorScore -= scoreSuccessCredit
		}
	case OutcomeTransportError:
		id.errorScore += scoreTransportDebit
	case OutcomeSoftBlock:
		id.errorScore += scoreSoftDebit
		// Stale consent state caused the wall; start the jar over.
		id.cookies = nil
	case OutcomeHardBlock:
		id.errorScore += p.cfg.RetireScore
	}
	retire := id.errorScore >= p.cfg.RetireScore || id.usageCount >= p.cfg.MaxUsage
	alreadyRetired := id.retired
	if retire {
		id.retired = true
	}
	score := id.errorScore
	usage := id.usageCount
	id.mu.Unlock()

	if retire && !alreadyRetired {
		p.mu.Lock()
		p.retired++
		p.mu.Unlock()
		p.logger.Info("identity retired",
			zap.String("identity_id", id.ID),
			zap.String("profile", id.Profile.Name),
			zap.Int("error_score", score),
			zap.Int("usage_count", usage),
		)
	}
}

// IngestCookies merges Set-Cookie headers from a response into the jar.
// Same-named cookies are overwritten; an empty value deletes the cookie.
func (p *Pool) IngestCookies(id *Identity, headers http.Header) {
	if id == nil || headers == nil {
		return
	}
	parsed := (&http.Response{Header: headers}).Cookies()
	if len(parsed) == 0 {
		return
	}
	id.mu.Lock()
	id.cookies = mergeCookies(id.cookies, parsed)
	id.mu.Unlock()
}

// Stats returns pool counters.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	active := 0
	for _, id := range p.identities {
		if !id.Retired() {
			active++
		}
	}
	return PoolStats{Created: p.created, Active: active, Retired: p.retired}
}

// mergeCookies is the single place cookie jars change outside retirement, so
// jar mutation stays auditable.
func mergeCookies(existing map[string]string, updates []*http.Cookie) map[string]string {
	jar := existing
	if jar == nil {
		jar = make(map[string]string, len(updates))
	}
	for _, c := range updates {
		if c.Name == "" {
			continue
		}
		if c.Value == "" {
			delete(jar, c.Name)
			continue
		}
		jar[c.Name] = c.Value
	}
	return jar
}

func (p *Pool) leasable(id *Identity) bool {
	id.mu.Lock()
	defer id.mu.Unlock()
	return !id.retired && !id.inFlight && id.usageCount < p.cfg.MaxUsage
}

func (p *Pool) lease(id *Identity) {
	id.mu.Lock()
	id.inFlight = true
	id.mu.Unlock()
}

// idlest returns the least-used leasable identity, oldest last use breaking
// ties, or nil if none.
func (p *Pool) idlest() *Identity {
	var best *Identity
	bestUsage := 0
	var bestUsed time.Time
	for _, id := range p.identities {
		if !p.leasable(id) {
			continue
		}
		id.mu.Lock()
		usage := id.usageCount
		used := id.lastUsed
		id.mu.Unlock()
		if best == nil || usage < bestUsage || (usage == bestUsage && used.Before(bestUsed)) {
			best = id
			bestUsage = usage
			bestUsed = used
		}
	}
	return best
}

// allocate creates a fresh identity. Allocation only happens when no
// identity is leasable, which after pruning means every live one is in
// flight, so exceeding the bound here is the alternative to deadlock.
func (p *Pool) allocate() (*Identity, error) {
	p.prune()
	if len(p.identities) >= p.cfg.MaxIdentities {
		p.logger.Debug("identity pool over capacity",
			zap.Int("live", len(p.identities)),
			zap.Int("max", p.cfg.MaxIdentities),
		)
	}

	rawID, err := p.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("allocate identity: %w", err)
	}
	profile := p.cfg.Profiles[p.nextProfile%len(p.cfg.Profiles)]
	p.nextProfile++

	id := &Identity{
		ID:       rawID,
		Profile:  profile,
		ProxyURL: p.proxyFor(rawID),
	}
	p.identities = append(p.identities, id)
	p.created++
	p.logger.Debug("identity created",
		zap.String("identity_id", id.ID),
		zap.String("profile", profile.Name),
		zap.String("proxy", id.ProxyURL),
	)
	return id, nil
}

// prune drops retired identities from the slice.
func (p *Pool) prune() {
	kept := p.identities[:0]
	for _, id := range p.identities {
		if !id.Retired() {
			kept = append(kept, id)
		}
	}
	p.identities = kept
}

// proxyFor gives an identity a stable proxy assignment by hashing its ID
// over the configured pool.
func (p *Pool) proxyFor(id string) string {
	if len(p.cfg.ProxyURLs) == 0 {
		return ""
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return p.cfg.ProxyURLs[int(h.Sum32())%len(p.cfg.ProxyURLs)]
}
