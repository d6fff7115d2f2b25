package collyfetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"

	"jobhound/internal/crawler"
)

func TestFetcherFetchOK(t *testing.T) {
	t.Parallel()

	var gotUA, gotReferer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc"})
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	f := New(Config{Timeout: 5 * time.Second})
	result, err := f.Fetch(context.Background(), crawler.FetchRequest{
		URL:     srv.URL + "/listing?p=1",
		Referer: "https://jobs.example.com/listing",
		Headers: http.Header{"User-Agent": {"probe-agent/1.0"}},
	})
	if err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}
	if result.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", result.StatusCode)
	}
	if string(result.Body) != "<html>ok</html>" {
		t.Fatalf("unexpected body %q", result.Body)
	}
	if result.FinalURL == "" {
		t.Fatal("expected final url to be recorded")
	}
	if result.Duration <= 0 {
		t.Fatal("expected a positive duration")
	}
	if result.Headers.Get("Set-Cookie") == "" {
		t.Fatal("expected response cookies to be surfaced in headers")
	}
	if gotUA != "probe-agent/1.0" {
		t.Fatalf("expected request user agent override, got %q", gotUA)
	}
	if gotReferer != "https://jobs.example.com/listing" {
		t.Fatalf("expected referer to be sent, got %q", gotReferer)
	}
}

func TestFetcherErrorStatusReturnsResult(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	f := New(Config{Timeout: 5 * time.Second})
	result, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: srv.URL})
	if err != nil {
		t.Fatalf("status errors must not surface as fetch errors, got %v", err)
	}
	if result.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", result.StatusCode)
	}
	if string(result.Body) != "slow down" {
		t.Fatalf("expected error body to be captured, got %q", result.Body)
	}
}

func TestFetcherTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := srv.URL
	srv.Close()

	f := New(Config{Timeout: 2 * time.Second})
	result, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: target})
	if err == nil {
		t.Fatal("expected a transport error")
	}
	if result.StatusCode != 0 {
		t.Fatalf("expected no status on transport error, got %d", result.StatusCode)
	}
}

func TestFetcherAllowsRevisit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("again"))
	}))
	defer srv.Close()

	f := New(Config{Timeout: 5 * time.Second})
	for i := 0; i < 2; i++ {
		result, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: srv.URL})
		if err != nil {
			t.Fatalf("fetch %d failed: %v", i+1, err)
		}
		if result.StatusCode != http.StatusOK {
			t.Fatalf("fetch %d: expected 200, got %d", i+1, result.StatusCode)
		}
	}
}

func TestFetcherSeedsCookies(t *testing.T) {
	t.Parallel()

	var gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session"); err == nil {
			gotCookie = c.Value
		}
	}))
	defer srv.Close()

	f := New(Config{Timeout: 5 * time.Second})
	_, err := f.Fetch(context.Background(), crawler.FetchRequest{
		URL:     srv.URL,
		Cookies: map[string]string{"session": "abc123"},
	})
	if err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}
	if gotCookie != "abc123" {
		t.Fatalf("expected seeded cookie to be sent, got %q", gotCookie)
	}
}

func TestApplyHeaders(t *testing.T) {
	t.Parallel()

	collyReq := &colly.Request{Headers: &http.Header{}}
	collyReq.Headers.Set("User-Agent", "colly-default")

	applyHeaders(collyReq, crawler.FetchRequest{
		Referer: "https://jobs.example.com/p1",
		Headers: http.Header{
			"User-Agent":      {"persona-agent/2.0"},
			"Accept-Language": {"en-US,en;q=0.9"},
		},
	})

	if got := collyReq.Headers.Get("User-Agent"); got != "persona-agent/2.0" {
		t.Fatalf("expected user agent replaced, got %q", got)
	}
	if len(collyReq.Headers.Values("User-Agent")) != 1 {
		t.Fatal("user agent must be replaced, not appended")
	}
	if got := collyReq.Headers.Get("Referer"); got != "https://jobs.example.com/p1" {
		t.Fatalf("expected referer header, got %q", got)
	}
	if got := collyReq.Headers.Get("Accept-Language"); got != "en-US,en;q=0.9" {
		t.Fatalf("expected accept-language header, got %q", got)
	}
}

func TestApplyHeadersHandlesNil(t *testing.T) {
	t.Parallel()

	collyReq := &colly.Request{Headers: &http.Header{}}
	applyHeaders(collyReq, crawler.FetchRequest{})
	if len(*collyReq.Headers) != 0 {
		t.Fatalf("expected no headers, got %+v", *collyReq.Headers)
	}
}

func TestTransportForReusesPerProxy(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	direct1 := f.transportFor("")
	direct2 := f.transportFor("")
	if direct1 != direct2 {
		t.Fatal("expected the direct transport to be shared")
	}
	proxied := f.transportFor("http://proxy.example.com:8080")
	if proxied == direct1 {
		t.Fatal("expected a distinct transport per proxy")
	}
}
