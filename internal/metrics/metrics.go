// Package metrics provides Prometheus instrumentation for the nichescope gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// CacheHitsTotal counts cache hits by backend.
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nichescope",
			Name:      "cache_hits_total",
			Help:      "Total cache hits by backend.",
		},
		[]string{"backend"},
	)

	// CacheMissesTotal counts cache misses by backend.
	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nichescope",
			Name:      "cache_misses_total",
			Help:      "Total cache misses by backend.",
		},
		[]string{"backend"},
	)

	// RateLimitRejectionsTotal counts throttled calls by service.
	RateLimitRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nichescope",
			Name:      "ratelimit_rejections_total",
			Help:      "Total outbound calls rejected by the fixed-window limiter.",
		},
		[]string{"service"},
	)

	// UpstreamFailuresTotal counts failed producer calls by service.
	UpstreamFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nichescope",
			Name:      "upstream_failures_total",
			Help:      "Total producer call failures (timeouts included) by service.",
		},
		[]string{"service"},
	)

	// FallbackServesTotal counts responses served from a degradation fallback.
	FallbackServesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nichescope",
			Name:      "fallback_serves_total",
			Help:      "Total responses served via the degradation fallback path.",
		},
		[]string{"service"},
	)

	// ScansTotal counts scoring runs by outcome.
	ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nichescope",
			Name:      "scans_total",
			Help:      "Total opportunity scoring runs by outcome.",
		},
		[]string{"outcome"},
	)

	// StressRunsTotal counts completed stress-test reports.
	StressRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nichescope",
			Name:      "stress_runs_total",
			Help:      "Total completed stress-test reports.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		CacheHitsTotal,
		CacheMissesTotal,
		RateLimitRejectionsTotal,
		UpstreamFailuresTotal,
		FallbackServesTotal,
		ScansTotal,
		StressRunsTotal,
	)
}
