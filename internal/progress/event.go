package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart      Stage = "RUN_START"
	StageRunDone       Stage = "RUN_DONE"
	StageRunError      Stage = "RUN_ERROR"
	StageFetchDone     Stage = "FETCH_DONE"
	StagePageDone      Stage = "PAGE_DONE"
	StageRecordSaved   Stage = "RECORD_SAVED"
	StageTaskRetry     Stage = "TASK_RETRY"
	StageTaskAbandoned Stage = "TASK_ABANDONED"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes tracked for fetch completions.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event captures a single milestone of crawl progress.
type Event struct {
	// RunID identifies the crawl run the event belongs to.
	RunID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Site scopes fetch events to a host label.
	Site string
	// URL is the optional page URL; it should not contain credentials.
	URL string
	// Kind is the task kind (listing or detail) where applicable.
	Kind string
	// StatusClass groups the HTTP response code for fetch completions.
	StatusClass StatusClass
	// Classification carries the block classifier's verdict on retries and
	// abandonments.
	Classification string
	// Attempt is the task's attempt counter at emission time.
	Attempt int
	// Bytes carries the response size for fetch completions.
	Bytes int64
	// Links counts detail links discovered on a finished listing page.
	Links int
	// Dur captures fetch latency or total run time.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StageFetchDone:
		if e.Site == "" {
			return errors.New("fetch done requires site")
		}
		if e.StatusClass == "" {
			return errors.New("fetch done requires status class")
		}
	case StagePageDone, StageRecordSaved:
		if e.URL == "" {
			return fmt.Errorf("%s requires url", e.Stage)
		}
	case StageTaskRetry, StageTaskAbandoned:
		if e.Classification == "" {
			return fmt.Errorf("%s requires classification", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// ClassifyStatus groups HTTP status codes for fetch events.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
