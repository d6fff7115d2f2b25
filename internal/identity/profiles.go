// Package identity manages reusable crawl personas: a device profile with an
// internally consistent header set, an accumulated cookie jar, and health
// counters that drive rotation and retirement.
package identity

import "net/http"

// Profile is one device fingerprint. The catalog keeps User-Agent strings and
// client-hint headers correlated so a persona never advertises Chrome hints
// with a Firefox agent.
type Profile struct {
	Name      string
	UserAgent string
	Headers   map[string]string
}

// Header builds the request header set for the profile, User-Agent included.
func (p Profile) Header() http.Header {
	h := make(http.Header, len(p.Headers)+1)
	h.Set("User-Agent", p.UserAgent)
	for k, v := range p.Headers {
		h.Set(k, v)
	}
	return h
}

const acceptHTML = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"

// DefaultProfiles is the built-in device catalog. Kept deliberately small:
// a handful of consistent personas beats a large pool of mismatched headers.
var DefaultProfiles = []Profile{
	{
		Name:      "chrome-windows",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		Headers: map[string]string{
			"Accept":                    acceptHTML,
			"Accept-Language":           "en-US,en;q=0.9",
			"Sec-Ch-Ua":                 `"Not/A)Brand";v="8", "Chromium";v="126", "Google Chrome";v="126"`,
			"Sec-Ch-Ua-Mobile":          "?0",
			"Sec-Ch-Ua-Platform":        `"Windows"`,
			"Upgrade-Insecure-Requests": "1",
		},
	},
	{
		Name:      "chrome-mac",
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		Headers: map[string]string{
			"Accept":                    acceptHTML,
			"Accept-Language":           "en-US,en;q=0.9",
			"Sec-Ch-Ua":                 `"Not/A)Brand";v="8", "Chromium";v="126", "Google Chrome";v="126"`,
			"Sec-Ch-Ua-Mobile":          "?0",
			"Sec-Ch-Ua-Platform":        `"macOS"`,
			"Upgrade-Insecure-Requests": "1",
		},
	},
	{
		Name:      "firefox-windows",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
		Headers: map[string]string{
			"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
			"Accept-Language":           "en-US,en;q=0.5",
			"DNT":                       "1",
			"Upgrade-Insecure-Requests": "1",
		},
	},
	{
		Name:      "edge-windows",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36 Edg/126.0.0.0",
		Headers: map[string]string{
			"Accept":                    acceptHTML,
			"Accept-Language":           "en-US,en;q=0.9",
			"Sec-Ch-Ua":                 `"Not/A)Brand";v="8", "Chromium";v="126", "Microsoft Edge";v="126"`,
			"Sec-Ch-Ua-Mobile":          "?0",
			"Sec-Ch-Ua-Platform":        `"Windows"`,
			"Upgrade-Insecure-Requests": "1",
		},
	},
	{
		Name:      "safari-mac",
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
		Headers: map[string]string{
			"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language":           "en-US,en;q=0.9",
			"Upgrade-Insecure-Requests": "1",
		},
	},
}
