// Package collyfetcher implements crawler.Fetcher on gocolly collectors.
//
// Each fetch runs on a fresh collector so per-identity cookies, headers and
// proxies never leak between concurrent workers. Transports are pooled per
// proxy URL to keep connection reuse, and robots.txt verdicts come from a
// shared cached gate instead of colly's per-collector map.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"jobhound/internal/crawler"
)

const defaultTimeout = 15 * time.Second

// Config controls collector behavior.
type Config struct {
	// UserAgent is the fallback when the request headers carry none.
	UserAgent string
	// RespectRobots enables the robots.txt gate. Disallowed URLs fail with
	// crawler.ErrRobotsDisallowed.
	RespectRobots bool
	// Timeout bounds one attempt end to end.
	Timeout time.Duration
	// MaxBodyBytes caps response bodies; zero keeps colly's default.
	MaxBodyBytes int
}

// Fetcher implements crawler.Fetcher using colly.
type Fetcher struct {
	cfg    Config
	robots *robotsGate

	mu         sync.Mutex
	transports map[string]*http.Transport
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Fetcher{
		cfg:        cfg,
		robots:     newRobotsGate(defaultRobotsTTL, nil),
		transports: make(map[string]*http.Transport),
	}
}

// Fetch executes a single HTTP GET. Non-2xx statuses are returned as a
// populated FetchResult with a nil error so the classifier can read them;
// the error return is reserved for transport-level failures and the robots
// gate.
func (f *Fetcher) Fetch(ctx context.Context, req crawler.FetchRequest) (crawler.FetchResult, error) {
	start := time.Now()
	result := crawler.FetchResult{URL: req.URL}

	if f.cfg.RespectRobots {
		allowed, err := f.robots.Allowed(ctx, req.URL, f.effectiveUserAgent(req))
		if err != nil {
			result.Duration = time.Since(start)
			return result, fmt.Errorf("robots gate for %s: %w", req.URL, err)
		}
		if !allowed {
			result.Duration = time.Since(start)
			return result, fmt.Errorf("%w: %s", crawler.ErrRobotsDisallowed, req.URL)
		}
	}

	collector, err := f.buildCollector(ctx, req)
	if err != nil {
		return result, err
	}

	var fetchErr error
	collector.OnRequest(func(r *colly.Request) {
		applyHeaders(r, req)
	})
	collector.OnResponse(func(r *colly.Response) {
		result = crawler.FetchResult{
			URL:        req.URL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			result.StatusCode = r.StatusCode
			if r.Headers != nil {
				result.Headers = r.Headers.Clone()
			}
			result.Body = append([]byte(nil), r.Body...)
		}
		fetchErr = err
	})

	if err := collector.Visit(req.URL); err != nil {
		result.Duration = time.Since(start)
		if result.StatusCode != 0 {
			// The server answered; let the classifier judge the status.
			return result, nil
		}
		return result, fmt.Errorf("colly visit %s: %w", req.URL, err)
	}
	if fetchErr != nil && result.StatusCode == 0 {
		result.Duration = time.Since(start)
		return result, fmt.Errorf("colly fetch %s: %w", req.URL, fetchErr)
	}
	if result.Duration == 0 {
		result.Duration = time.Since(start)
	}
	return result, nil
}

// buildCollector assembles a single-use collector for one request. Robots
// checking stays off here; the shared gate already ruled.
func (f *Fetcher) buildCollector(ctx context.Context, req crawler.FetchRequest) (*colly.Collector, error) {
	opts := []colly.CollectorOption{
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		colly.IgnoreRobotsTxt(),
		colly.StdlibContext(ctx),
	}
	if f.cfg.MaxBodyBytes > 0 {
		opts = append(opts, colly.MaxBodySize(f.cfg.MaxBodyBytes))
	}
	if f.cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(f.cfg.UserAgent))
	}

	collector := colly.NewCollector(opts...)
	collector.SetRequestTimeout(f.cfg.Timeout)
	collector.WithTransport(f.transportFor(req.ProxyURL))

	if len(req.Cookies) > 0 {
		cookies := make([]*http.Cookie, 0, len(req.Cookies))
		for name, value := range req.Cookies {
			cookies = append(cookies, &http.Cookie{Name: name, Value: value})
		}
		if err := collector.SetCookies(req.URL, cookies); err != nil {
			return nil, fmt.Errorf("seed cookies for %s: %w", req.URL, err)
		}
	}
	return collector, nil
}

// transportFor returns the shared transport for a proxy URL, creating it on
// first use. Proxies come from a small fixed pool, so the map stays tiny and
// each proxy keeps its own connection pool.
func (f *Fetcher) transportFor(proxyURL string) *http.Transport {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.transports[proxyURL]; ok {
		return t
	}
	t := newHTTPTransport(proxyURL)
	f.transports[proxyURL] = t
	return t
}

func (f *Fetcher) effectiveUserAgent(req crawler.FetchRequest) string {
	if ua := req.Headers.Get("User-Agent"); ua != "" {
		return ua
	}
	return f.cfg.UserAgent
}

func applyHeaders(r *colly.Request, req crawler.FetchRequest) {
	for key, values := range req.Headers {
		for i, v := range values {
			if i == 0 {
				r.Headers.Set(key, v)
				continue
			}
			r.Headers.Add(key, v)
		}
	}
	if req.Referer != "" {
		r.Headers.Set("Referer", req.Referer)
	}
}

func newHTTPTransport(proxyURL string) *http.Transport {
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil && u.Scheme != "" && u.Host != "" {
			t.Proxy = http.ProxyURL(u)
		}
	}
	return t
}
