// Package metrics exposes Prometheus instrumentation for the HTTP surface,
// the dispatcher, the governor, and the response cache.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "latebird_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "method", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "latebird_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	dispatchOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "latebird_dispatch_outcomes_total",
		Help: "Scheduled post dispatch attempts by outcome (posted, failed, skipped).",
	}, []string{"sweep", "outcome"})

	sweepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "latebird_sweep_duration_seconds",
		Help:    "Duration of dispatcher sweeps.",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60},
	}, []string{"sweep"})

	governorDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "latebird_governor_decisions_total",
		Help: "Rate governor admissions and denials by operation class.",
	}, []string{"class", "decision"})

	cacheServes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "latebird_cache_serves_total",
		Help: "Read path cache outcomes (fresh, stale, miss).",
	}, []string{"class", "mode"})

	upstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "latebird_upstream_errors_total",
		Help: "Upstream provider call failures by error code.",
	}, []string{"code"})
)

// ObserveHTTPRequest records one completed HTTP request.
func ObserveHTTPRequest(route, method string, status string, elapsed time.Duration) {
	httpRequests.WithLabelValues(route, method, status).Inc()
	httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// ObserveDispatch records a single dispatch attempt outcome within a sweep.
func ObserveDispatch(sweep, outcome string) {
	dispatchOutcomes.WithLabelValues(sweep, outcome).Inc()
}

// ObserveSweep records the duration of one dispatcher sweep.
func ObserveSweep(sweep string, elapsed time.Duration) {
	sweepDuration.WithLabelValues(sweep).Observe(elapsed.Seconds())
}

// ObserveGovernorDecision records an admission or denial for an operation class.
func ObserveGovernorDecision(class string, allowed bool) {
	decision := "denied"
	if allowed {
		decision = "allowed"
	}
	governorDecisions.WithLabelValues(class, decision).Inc()
}

// ObserveCacheServe records how a read request was satisfied.
func ObserveCacheServe(class, mode string) {
	cacheServes.WithLabelValues(class, mode).Inc()
}

// ObserveUpstreamError records a failed upstream call by application error code.
func ObserveUpstreamError(code string) {
	upstreamErrors.WithLabelValues(code).Inc()
}

// Handler returns the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
