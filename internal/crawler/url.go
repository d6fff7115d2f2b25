package crawler

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// NormalizeURL standardizes a URL so the frontier can deduplicate reliably.
// It lowercases the scheme and host, removes default ports and fragments, and
// sorts query parameters.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q is not absolute", rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""

	// Encode sorts query keys.
	q := u.Query()
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Seeds builds listing-page URLs for a site. Either StartURL or Keyword must
// be set; parameter names default to the common ukw/rgns/p trio.
type Seeds struct {
	// BaseURL is the listing endpoint used when StartURL is empty.
	BaseURL string
	// StartURL, when set, seeds the crawl directly. Its query string is
	// preserved; only the page parameter is replaced per page.
	StartURL string
	// Keyword is the search term placed in KeywordParam.
	Keyword string
	// Region is placed in RegionParam. An empty region is omitted entirely
	// rather than sent blank.
	Region string

	KeywordParam string
	RegionParam  string
	PageParam    string
}

func (s Seeds) keywordParam() string {
	if s.KeywordParam != "" {
		return s.KeywordParam
	}
	return "ukw"
}

func (s Seeds) regionParam() string {
	if s.RegionParam != "" {
		return s.RegionParam
	}
	return "rgns"
}

func (s Seeds) pageParam() string {
	if s.PageParam != "" {
		return s.PageParam
	}
	return "p"
}

// Validate checks that the seeds can produce at least one listing URL.
func (s Seeds) Validate() error {
	if s.StartURL == "" && s.Keyword == "" {
		return fmt.Errorf("either a start url or a keyword is required")
	}
	if s.StartURL == "" && s.BaseURL == "" {
		return fmt.Errorf("a base url is required when no start url is given")
	}
	return nil
}

// PageURL returns the listing URL for the given 1-based page number.
func (s Seeds) PageURL(page int) (string, error) {
	if page < 1 {
		return "", fmt.Errorf("page number %d out of range", page)
	}
	if s.StartURL != "" {
		u, err := url.Parse(s.StartURL)
		if err != nil {
			return "", fmt.Errorf("parse start url: %w", err)
		}
		q := u.Query()
		q.Set(s.pageParam(), strconv.Itoa(page))
		u.RawQuery = q.Encode()
		return u.String(), nil
	}

	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set(s.keywordParam(), s.Keyword)
	if s.Region != "" {
		q.Set(s.regionParam(), s.Region)
	}
	q.Set(s.pageParam(), strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ResolveLink resolves href against base and returns the absolute result.
func ResolveLink(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	h, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse href: %w", err)
	}
	return b.ResolveReference(h).String(), nil
}

// Host returns the lowercased hostname of rawURL, or "" if it cannot be
// parsed. Useful as an identity sticky key and a rate-limit bucket.
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
