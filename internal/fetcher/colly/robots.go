package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const (
	defaultRobotsTTL = time.Hour
	maxRobotsBody    = 512 << 10
)

var robotsRetryBackoff = []time.Duration{
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
}

// robotsGate answers allow/deny per URL from cached, parsed robots.txt
// files. Transient fetch failures fail open: an unreachable robots.txt must
// not wedge a crawl that a later page fetch would surface anyway.
type robotsGate struct {
	ttl    time.Duration
	client *http.Client

	mu      sync.Mutex
	entries map[string]robotsGateEntry
}

// robotsGateEntry caches one host's parsed rules. A nil data means the file
// could not be retrieved and the host is treated as allow-all until the
// entry expires.
type robotsGateEntry struct {
	data     *robotstxt.RobotsData
	storedAt time.Time
}

func newRobotsGate(ttl time.Duration, client *http.Client) *robotsGate {
	if ttl <= 0 {
		ttl = defaultRobotsTTL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &robotsGate{
		ttl:     ttl,
		client:  client,
		entries: make(map[string]robotsGateEntry),
	}
}

// Allowed reports whether agent may fetch rawURL.
func (g *robotsGate) Allowed(ctx context.Context, rawURL, agent string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("parse url for robots check: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return false, fmt.Errorf("url %q is not absolute", rawURL)
	}

	data, err := g.dataFor(ctx, u.Scheme+"://"+u.Host)
	if err != nil {
		return false, err
	}
	if data == nil {
		return true, nil
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return data.TestAgent(path, agent), nil
}

// dataFor returns the cached rules for an origin, fetching on miss or
// expiry. Concurrent misses for one origin may fetch twice; the cache
// converges on whichever lands last.
func (g *robotsGate) dataFor(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	g.mu.Lock()
	entry, ok := g.entries[origin]
	g.mu.Unlock()
	if ok && time.Since(entry.storedAt) < g.ttl {
		return entry.data, nil
	}

	data, err := g.fetch(ctx, origin+"/robots.txt")
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	g.entries[origin] = robotsGateEntry{data: data, storedAt: time.Now()}
	g.mu.Unlock()
	return data, nil
}

// fetch retrieves and parses robots.txt, retrying transient timeouts. After
// the retry budget it returns nil rules, i.e. fail open.
func (g *robotsGate) fetch(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, error) {
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build robots request: %w", err)
		}
		resp, err := g.client.Do(req)
		if err == nil {
			body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBody))
			closeErr := resp.Body.Close()
			if readErr != nil || closeErr != nil {
				return nil, nil
			}
			data, parseErr := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
			if parseErr != nil {
				return nil, nil
			}
			return data, nil
		}
		if !isTransientNetError(err) {
			return nil, fmt.Errorf("fetch %s: %w", robotsURL, err)
		}
		if attempt >= len(robotsRetryBackoff) {
			return nil, nil
		}
		if err := sleepWithContext(ctx, robotsRetryBackoff[attempt]); err != nil {
			return nil, err
		}
	}
}

func isTransientNetError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "tls: handshake timeout")
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("robots backoff sleep: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
