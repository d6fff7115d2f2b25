package crawler

import "strings"

// LinkPolicy decides whether a discovered detail link may enter the
// frontier. Off-host links are refused unless AllowOffHost is set, and hosts
// matching the blocklist are always refused.
type LinkPolicy struct {
	AllowOffHost bool
	blocklist    *hostBlocklist
}

// NewLinkPolicy builds a policy from blocklist patterns. Patterns may be
// exact hosts ("ads.example.com") or suffix wildcards ("*.example.net",
// ".example.net").
func NewLinkPolicy(allowOffHost bool, blockPatterns []string) *LinkPolicy {
	return &LinkPolicy{
		AllowOffHost: allowOffHost,
		blocklist:    newHostBlocklist(blockPatterns),
	}
}

// Allow reports whether link may be enqueued from a page on baseHost.
func (p *LinkPolicy) Allow(baseHost, link string) bool {
	host := Host(link)
	if host == "" {
		return false
	}
	if !p.AllowOffHost && !strings.EqualFold(host, baseHost) {
		return false
	}
	return !p.blocklist.IsBlocked(host)
}

// hostBlocklist stores exact hosts and suffix wildcards from configuration.
type hostBlocklist struct {
	exact    map[string]struct{}
	suffixes []string
}

func newHostBlocklist(patterns []string) *hostBlocklist {
	matcher := &hostBlocklist{
		exact: make(map[string]struct{}),
	}
	for _, raw := range patterns {
		value := strings.TrimSpace(strings.ToLower(raw))
		if value == "" {
			continue
		}
		switch {
		case strings.HasPrefix(value, "*."):
			matcher.addSuffix(strings.TrimPrefix(value, "*."))
		case strings.HasPrefix(value, "."):
			matcher.addSuffix(strings.TrimPrefix(value, "."))
		default:
			matcher.exact[value] = struct{}{}
		}
	}
	return matcher
}

func (b *hostBlocklist) addSuffix(suffix string) {
	if suffix == "" {
		return
	}
	for _, existing := range b.suffixes {
		if existing == suffix {
			return
		}
	}
	b.suffixes = append(b.suffixes, suffix)
}

func (b *hostBlocklist) IsBlocked(host string) bool {
	if b == nil {
		return false
	}
	host = strings.TrimSpace(strings.ToLower(host))
	if host == "" {
		return false
	}
	if _, exact := b.exact[host]; exact {
		return true
	}
	for _, suffix := range b.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}
