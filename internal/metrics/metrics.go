// Package metrics provides Prometheus instrumentation for the market-data
// gateway. All metric collectors are registered via Init and exposed
// through the Handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// UpstreamRequests counts upstream dispatch outcomes. The outcome label
	// is one of "success", "empty", "transient", "permanent".
	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_upstream_requests_total",
			Help: "Total upstream operations by final outcome",
		},
		[]string{"outcome"},
	)

	// UpstreamDuration observes upstream operation latency in seconds,
	// including internal retries.
	UpstreamDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gateway_upstream_duration_seconds",
			Help:    "Upstream operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Retries counts internal retry attempts by cause ("empty" or "transient").
	Retries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_upstream_retries_total",
			Help: "Total upstream retry attempts",
		},
		[]string{"cause"},
	)

	// QueueDepth tracks the number of requests waiting for dispatch.
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_queue_depth",
			Help: "Number of queued requests awaiting dispatch",
		},
	)

	// InFlight tracks upstream operations currently executing. The
	// sequential scheduler keeps this at most 1.
	InFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_upstream_in_flight",
			Help: "Upstream operations currently executing",
		},
	)

	// Tokens reports the current token bucket level.
	Tokens = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_tokens",
			Help: "Current token bucket level",
		},
	)

	// BreakerState reports the circuit breaker state as a number
	// (0=closed, 1=open, 2=half-open).
	BreakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
	)

	// BreakerTransitions counts circuit breaker state changes.
	BreakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"from", "to"},
	)

	// CacheHits counts dedup cache lookups by result ("hit" or "miss").
	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_cache_lookups_total",
			Help: "Total dedup cache lookups",
		},
		[]string{"result"},
	)

	// RateLimitHits counts inbound HTTP rate limit rejections.
	RateLimitHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_rate_limit_hits_total",
			Help: "Total inbound rate limit rejections",
		},
	)

	// RequestsTotal counts inbound HTTP requests by path and status code.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total HTTP requests processed",
		},
		[]string{"path", "status"},
	)
)

// Init registers all metric collectors with the default Prometheus registry.
// Must be called once at startup before handling requests.
func Init() {
	prometheus.MustRegister(
		UpstreamRequests,
		UpstreamDuration,
		Retries,
		QueueDepth,
		InFlight,
		Tokens,
		BreakerState,
		BreakerTransitions,
		CacheHits,
		RateLimitHits,
		RequestsTotal,
	)
}

// Handler returns an http.Handler that serves the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
