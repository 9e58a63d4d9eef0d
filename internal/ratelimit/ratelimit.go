// Package ratelimit bounds outbound call rate per upstream service using
// a fixed window. A rejection is a throttling signal with a retry hint,
// not an upstream failure.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/nichescope/nichescope/internal/metrics"
)

// Config configures the per-service window.
type Config struct {
	// Limit is the max calls per service per period.
	Limit int
	// Period is the window length.
	Period time.Duration
	// CleanupInterval is how often to drop idle service windows.
	CleanupInterval time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Limit:           60,
		Period:          time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// ThrottleError reports a rejected call with the time until the window rolls.
type ThrottleError struct {
	Service    string
	RetryAfter time.Duration
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.Service, e.RetryAfter)
}

// Limiter tracks one fixed window per service. Windows are independent:
// each carries its own lock so services never contend with one another.
type Limiter struct {
	cfg     Config
	windows sync.Map // map[string]*window
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type window struct {
	mu    sync.Mutex
	start time.Time
	count int
}

// New creates a limiter and starts its idle-window cleanup goroutine.
func New(cfg Config) *Limiter {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultConfig().Limit
	}
	if cfg.Period <= 0 {
		cfg.Period = DefaultConfig().Period
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultConfig().CleanupInterval
	}

	l := &Limiter{
		cfg:  cfg,
		now:  time.Now,
		stop: make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Admit counts a call against service's current window. It returns a
// *ThrottleError carrying the remaining window time when the limit is
// already spent. The window rolls over on the first Admit after the
// period has elapsed.
func (l *Limiter) Admit(service string) error {
	w := l.getWindow(service)

	w.mu.Lock()
	defer w.mu.Unlock()

	now := l.now()
	if now.Sub(w.start) >= l.cfg.Period {
		w.start = now
		w.count = 0
	}

	if w.count >= l.cfg.Limit {
		retryAfter := l.cfg.Period - now.Sub(w.start)
		metrics.RateLimitRejectionsTotal.WithLabelValues(service).Inc()
		return &ThrottleError{Service: service, RetryAfter: retryAfter}
	}

	w.count++
	return nil
}

// Remaining returns how many calls are left in service's current window.
func (l *Limiter) Remaining(service string) int {
	w := l.getWindow(service)

	w.mu.Lock()
	defer w.mu.Unlock()

	if l.now().Sub(w.start) >= l.cfg.Period {
		return l.cfg.Limit
	}
	return l.cfg.Limit - w.count
}

// Stop stops the cleanup goroutine
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) getWindow(service string) *window {
	if w, ok := l.windows.Load(service); ok {
		return w.(*window)
	}
	w, _ := l.windows.LoadOrStore(service, &window{start: l.now()})
	return w.(*window)
}

// cleanup drops windows idle for two full periods.
func (l *Limiter) cleanup() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := l.now().Add(-2 * l.cfg.Period)
			l.windows.Range(func(key, value any) bool {
				w := value.(*window)
				w.mu.Lock()
				stale := w.start.Before(cutoff)
				w.mu.Unlock()
				if stale {
					l.windows.Delete(key)
				}
				return true
			})
		case <-l.stop:
			return
		}
	}
}
