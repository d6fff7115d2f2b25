package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run-level metrics (fetches, retries, abandons, saves) are derived from the
// progress event stream by the sinks package; the counters here cover what
// only the engine internals can see.
var (
	// TotalClassifications tracks classifier verdicts per fetch attempt.
	TotalClassifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobhound_classifications_total",
		Help: "The total number of fetch classifications, by class.",
	}, []string{"class"})
	// TotalExtractionFailures tracks detail pages whose extraction missed
	// the required title.
	TotalExtractionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobhound_extraction_failures_total",
		Help: "The total number of detail pages that failed record extraction.",
	})
	// TotalFrontierRejections tracks URLs the frontier refused.
	TotalFrontierRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobhound_frontier_rejections_total",
		Help: "The total number of frontier admissions refused, by reason.",
	}, []string{"reason"})
)
