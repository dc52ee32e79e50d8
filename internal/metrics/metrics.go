// Package metrics exposes the daemon's operational counters in
// Prometheus text exposition format. Adapted from the teacher's
// internal/observability.Metrics, narrowed from generic crawl counters
// (requests/responses/proxy rotations) to the job-pipeline counters
// this domain actually produces.
package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

// Metrics tracks counters across the Job Executor's lifetime. All
// fields are safe for concurrent use; the executor's claim loop is
// single-threaded but the API server reads these from its own
// goroutine.
type Metrics struct {
	JobsClaimed   atomic.Int64
	JobsCompleted atomic.Int64
	JobsFailed    atomic.Int64
	JobsCancelled atomic.Int64

	ParcelsScraped    atomic.Int64
	ParcelsNotFound   atomic.Int64
	ParcelsErrored    atomic.Int64
	DocumentsFetched  atomic.Int64
	DocumentsFailed   atomic.Int64
}

// New builds an empty Metrics.
func New() *Metrics {
	return &Metrics{}
}

// ServeHTTP renders the current counter values in Prometheus text
// exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	rows := []struct {
		name  string
		help  string
		value int64
	}{
		{"parcelwalk_jobs_claimed_total", "Total jobs claimed from the queue", m.JobsClaimed.Load()},
		{"parcelwalk_jobs_completed_total", "Total jobs completed successfully", m.JobsCompleted.Load()},
		{"parcelwalk_jobs_failed_total", "Total jobs that ended in failure", m.JobsFailed.Load()},
		{"parcelwalk_jobs_cancelled_total", "Total jobs cancelled mid-run", m.JobsCancelled.Load()},
		{"parcelwalk_parcels_scraped_total", "Total parcels extracted successfully", m.ParcelsScraped.Load()},
		{"parcelwalk_parcels_not_found_total", "Total parcels the portal reported as not found", m.ParcelsNotFound.Load()},
		{"parcelwalk_parcels_errored_total", "Total parcels that errored during extraction", m.ParcelsErrored.Load()},
		{"parcelwalk_documents_fetched_total", "Total property-record documents downloaded", m.DocumentsFetched.Load()},
		{"parcelwalk_documents_failed_total", "Total document downloads that failed", m.DocumentsFailed.Load()},
	}

	for _, row := range rows {
		fmt.Fprintf(w, "# HELP %s %s\n", row.name, row.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", row.name)
		fmt.Fprintf(w, "%s %d\n", row.name, row.value)
	}
}
