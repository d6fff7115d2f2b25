package crawler

import "testing"

func TestLinkPolicyAllow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		allowOffHost bool
		blocked      []string
		baseHost     string
		link         string
		want         bool
	}{
		{
			name:     "same host allowed",
			baseHost: "jobs.example.com",
			link:     "https://jobs.example.com/job/1",
			want:     true,
		},
		{
			name:     "host comparison ignores case",
			baseHost: "jobs.example.com",
			link:     "https://JOBS.EXAMPLE.COM/job/1",
			want:     true,
		},
		{
			name:     "off host refused by default",
			baseHost: "jobs.example.com",
			link:     "https://other.example.org/job/1",
			want:     false,
		},
		{
			name:         "off host allowed when opted in",
			allowOffHost: true,
			baseHost:     "jobs.example.com",
			link:         "https://other.example.org/job/1",
			want:         true,
		},
		{
			name:         "exact blocklist entry refused",
			allowOffHost: true,
			blocked:      []string{"ads.example.net"},
			baseHost:     "jobs.example.com",
			link:         "https://ads.example.net/job/1",
			want:         false,
		},
		{
			name:         "wildcard blocks subdomains",
			allowOffHost: true,
			blocked:      []string{"*.tracker.net"},
			baseHost:     "jobs.example.com",
			link:         "https://deep.pixel.tracker.net/job/1",
			want:         false,
		},
		{
			name:         "wildcard blocks the bare suffix too",
			allowOffHost: true,
			blocked:      []string{"*.tracker.net"},
			baseHost:     "jobs.example.com",
			link:         "https://tracker.net/job/1",
			want:         false,
		},
		{
			name:         "dot prefix behaves like wildcard",
			allowOffHost: true,
			blocked:      []string{".tracker.net"},
			baseHost:     "jobs.example.com",
			link:         "https://a.tracker.net/job/1",
			want:         false,
		},
		{
			name:         "suffix must match on a label boundary",
			allowOffHost: true,
			blocked:      []string{"*.tracker.net"},
			baseHost:     "jobs.example.com",
			link:         "https://nottracker.net/job/1",
			want:         true,
		},
		{
			name:     "blocklist applies on the base host as well",
			blocked:  []string{"jobs.example.com"},
			baseHost: "jobs.example.com",
			link:     "https://jobs.example.com/job/1",
			want:     false,
		},
		{
			name:     "unparseable link refused",
			baseHost: "jobs.example.com",
			link:     "%%%",
			want:     false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			policy := NewLinkPolicy(tc.allowOffHost, tc.blocked)
			if got := policy.Allow(tc.baseHost, tc.link); got != tc.want {
				t.Fatalf("Allow(%q, %q) = %v, want %v", tc.baseHost, tc.link, got, tc.want)
			}
		})
	}
}

func TestHostBlocklistNormalizesPatterns(t *testing.T) {
	t.Parallel()

	matcher := newHostBlocklist([]string{"  ADS.Example.NET ", "", "*.Tracker.net", "*.tracker.net"})

	if !matcher.IsBlocked("ads.example.net") {
		t.Fatal("case-folded exact entry not matched")
	}
	if !matcher.IsBlocked("A.TRACKER.NET") {
		t.Fatal("case-folded lookup not matched")
	}
	if len(matcher.suffixes) != 1 {
		t.Fatalf("duplicate suffix kept, have %d", len(matcher.suffixes))
	}
	if matcher.IsBlocked("") {
		t.Fatal("empty host must not match")
	}
}
