package crawler

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// ErrRobotsDisallowed reports that robots.txt forbids the requested URL.
// Tasks failing the robots gate are dropped without retries; the site said
// no, so hammering it with backoff would be worse than pointless.
var ErrRobotsDisallowed = errors.New("robots.txt disallows url")

// TaskKind distinguishes the two phases of a crawl.
type TaskKind string

// Task kinds processed by the engine.
const (
	KindListing TaskKind = "listing"
	KindDetail  TaskKind = "detail"
)

// Task is one unit of crawl work. Its URL is normalized before it enters the
// frontier and is unique for the frontier's lifetime.
type Task struct {
	// URL is the normalized absolute target.
	URL string
	// Kind selects the listing or detail handler.
	Kind TaskKind
	// PageNumber is the 1-based listing page index; detail tasks carry the
	// page their link was discovered on.
	PageNumber int
	// Referer is sent with the request when non-empty.
	Referer string
	// Attempt counts completed retries; zero on first dispatch.
	Attempt int
	// UseHeadless routes the next fetch through the headless transport.
	// Set after a soft block so the retry renders past the wall.
	UseHeadless bool
}

// FetchRequest carries everything a transport needs for one attempt.
type FetchRequest struct {
	URL      string
	Referer  string
	Headers  http.Header
	Cookies  map[string]string
	ProxyURL string
}

// FetchResult is the outcome of one transport attempt. Err carries any
// transport-level failure so classification stays a pure function of the
// result.
type FetchResult struct {
	URL          string
	FinalURL     string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
	Err          error
}

// Classification buckets a fetch outcome for the retry controller.
type Classification string

// Classifications in escalating order of identity damage.
const (
	ClassOK             Classification = "ok"
	ClassTransportError Classification = "transport_error"
	ClassSoftBlock      Classification = "soft_block"
	ClassHardBlock      Classification = "hard_block"
)

// Action is the retry controller's verdict for one attempt.
type Action int

// Controller verdicts.
const (
	ActionProceed Action = iota
	ActionRetry
	ActionAbandon
)

// String returns the lowercase verdict name for logs.
func (a Action) String() string {
	switch a {
	case ActionProceed:
		return "proceed"
	case ActionRetry:
		return "retry"
	case ActionAbandon:
		return "abandon"
	default:
		return "unknown"
	}
}

// Decision pairs an Action with the delay to observe before a retry re-enters
// the frontier. Delay is zero unless Action is ActionRetry.
type Decision struct {
	Action Action
	Delay  time.Duration
}

// Record is one normalized job posting. Title is the only required field;
// every other field defaults to its zero value so downstream consumers see a
// stable schema. A Record is never mutated after extraction.
type Record struct {
	Title           string    `json:"title"`
	Company         string    `json:"company"`
	Location        string    `json:"location"`
	Compensation    string    `json:"compensation"`
	PostedAt        string    `json:"posted_at"`
	Category        string    `json:"category"`
	DescriptionText string    `json:"description_text"`
	DescriptionHTML string    `json:"description_html"`
	SourceURL       string    `json:"source_url"`
	PageNumber      int       `json:"page_number"`
	FetchedAt       time.Time `json:"fetched_at"`
}

// Valid reports whether the record clears the title-required gate.
func (r Record) Valid() bool {
	return strings.TrimSpace(r.Title) != ""
}

// RunResult summarizes one finished crawl.
type RunResult struct {
	ItemsSaved     int           `json:"items_saved"`
	PagesVisited   int           `json:"pages_visited"`
	TasksAbandoned int           `json:"tasks_abandoned"`
	Duration       time.Duration `json:"duration"`
}
