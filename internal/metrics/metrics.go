// Package metrics holds the Prometheus collectors shared by the HTTP layer
// and the services.  They register with the default registry, which
// GET /metrics exposes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkbio_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linkbio_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// RateLimitDenied counts 429 responses per policy.
	RateLimitDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkbio_rate_limit_denied_total",
			Help: "Requests rejected by a rate limit policy",
		},
		[]string{"policy"},
	)

	// PublishTotal counts publish attempts by result (ok, error).
	PublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkbio_publish_total",
			Help: "Publish operations by result",
		},
		[]string{"result"},
	)

	RevalidateFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linkbio_revalidate_failures_total",
			Help: "Downstream cache invalidations that failed",
		},
	)

	// EmailJobsTotal counts email jobs by type, transport (amqp, direct,
	// webhook, consumer) and result.
	EmailJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkbio_email_jobs_total",
			Help: "Email jobs handled",
		},
		[]string{"type", "transport", "result"},
	)
)

// Result maps an error onto the "result" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
