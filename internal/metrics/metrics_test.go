package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersRegistered(t *testing.T) {
	CacheHitsTotal.WithLabelValues("memory").Inc()
	CacheMissesTotal.WithLabelValues("memory").Inc()
	RateLimitRejectionsTotal.WithLabelValues("trends").Inc()
	UpstreamFailuresTotal.WithLabelValues("trends").Inc()
	FallbackServesTotal.WithLabelValues("trends").Inc()
	ScansTotal.WithLabelValues("ok").Inc()
	StressRunsTotal.Inc()

	if got := testutil.ToFloat64(CacheHitsTotal.WithLabelValues("memory")); got < 1 {
		t.Fatalf("cache hits counter not incremented: %v", got)
	}
	if got := testutil.ToFloat64(StressRunsTotal); got < 1 {
		t.Fatalf("stress runs counter not incremented: %v", got)
	}
}
