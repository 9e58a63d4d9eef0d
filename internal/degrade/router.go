// Package degrade routes calls between a primary and a fallback path per
// upstream service. A primary failure marks the service unhealthy and
// every later call goes straight to the fallback until an external
// health check calls Reset — the router never self-heals.
package degrade

import (
	"context"
	"sync"
	"time"

	"github.com/nichescope/nichescope/internal/logging"
	"github.com/nichescope/nichescope/internal/metrics"
)

// Fn is a call path: a primary upstream call or its fallback.
type Fn func(ctx context.Context) ([]byte, error)

// Router holds a health flag per service.
type Router struct {
	mu       sync.Mutex
	services map[string]*serviceHealth
	now      func() time.Time
}

type serviceHealth struct {
	healthy     bool
	lastFailure time.Time
	failures    int64
}

// NewRouter creates a router with every service implicitly healthy.
func NewRouter() *Router {
	return &Router{
		services: make(map[string]*serviceHealth),
		now:      time.Now,
	}
}

// Execute runs primary if service is healthy, switching to fallback on
// error (and marking the service unhealthy). Unhealthy services skip the
// primary entirely. Both the primary error and the fallback result are
// surfaced: if the fallback also fails, its error is returned.
func (r *Router) Execute(ctx context.Context, service string, primary, fallback Fn) ([]byte, error) {
	if !r.Healthy(service) {
		metrics.FallbackServesTotal.WithLabelValues(service).Inc()
		return fallback(ctx)
	}

	payload, err := primary(ctx)
	if err == nil {
		return payload, nil
	}

	r.MarkUnhealthy(service)
	logging.ForService(ctx, service).Warn("primary path failed, degrading to fallback", "error", err)
	metrics.FallbackServesTotal.WithLabelValues(service).Inc()
	return fallback(ctx)
}

// Healthy reports the service's flag. Unknown services are healthy.
func (r *Router) Healthy(service string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.services[service]
	if !ok {
		return true
	}
	return s.healthy
}

// MarkUnhealthy clears the flag and records the failure.
func (r *Router) MarkUnhealthy(service string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.services[service]
	if !ok {
		s = &serviceHealth{healthy: true}
		r.services[service] = s
	}
	s.healthy = false
	s.failures++
	s.lastFailure = r.now()
}

// Reset restores the flag. Only external health checks call this.
func (r *Router) Reset(service string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.services[service]; ok {
		s.healthy = true
	}
}

// LastFailure returns when the service last failed, or zero if never.
func (r *Router) LastFailure(service string) time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.services[service]; ok {
		return s.lastFailure
	}
	return time.Time{}
}

// Snapshot returns the health flag of every service the router has seen.
func (r *Router) Snapshot() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	flags := make(map[string]bool, len(r.services))
	for name, s := range r.services {
		flags[name] = s.healthy
	}
	return flags
}
