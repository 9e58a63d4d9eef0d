// Package gateway composes the acquisition pipeline: cache, single-flight
// coalescing, rate limiting, circuit breaking, bounded retries and the
// degradation router, in that order. Callers supply a producer that fetches
// the live payload and an optional fallback that serves a degraded one.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nichescope/nichescope/internal/cache"
	"github.com/nichescope/nichescope/internal/circuitbreaker"
	"github.com/nichescope/nichescope/internal/config"
	"github.com/nichescope/nichescope/internal/degrade"
	"github.com/nichescope/nichescope/internal/metrics"
	"github.com/nichescope/nichescope/internal/ratelimit"
	"github.com/nichescope/nichescope/internal/retry"
)

// Producer fetches a live payload from an upstream service. Each attempt
// runs under the gateway's per-attempt timeout, so implementations must
// honor ctx cancellation.
type Producer func(ctx context.Context) ([]byte, error)

// staleTTLDivisor shortens the cache TTL of payloads served by a fallback,
// so degraded data expires well before fresh data would.
const staleTTLDivisor = 4

// Gateway is a resilient front for upstream market-signal services.
type Gateway struct {
	store   *cache.Manager
	limiter *ratelimit.Limiter
	breaker *circuitbreaker.Breaker
	router  *degrade.Router

	flights singleflight.Group

	policy          retry.Policy
	producerTimeout time.Duration
	logger          *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the gateway's logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithRetryPolicy replaces the producer retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(g *Gateway) { g.policy = p }
}

// WithProducerTimeout bounds each producer attempt. Zero disables the bound.
func WithProducerTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.producerTimeout = d }
}

// New assembles a gateway from its resilience components.
func New(store cache.Store, limiter *ratelimit.Limiter, breaker *circuitbreaker.Breaker, router *degrade.Router, opts ...Option) *Gateway {
	g := &Gateway{
		store:           cache.NewManager(store),
		limiter:         limiter,
		breaker:         breaker,
		router:          router,
		policy:          retry.DefaultPolicy(),
		producerTimeout: config.DefaultProducerTimeoutSec * time.Second,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// FromConfig builds a gateway wired per cfg, including the cache backend it
// names. The returned stop func releases the backend's resources.
func FromConfig(cfg *config.Config, opts ...Option) (*Gateway, func(), error) {
	var (
		store cache.Store
		stop  = func() {}
		err   error
	)
	switch cfg.CacheBackend {
	case config.BackendMemory:
		mem := cache.NewMemory(cfg.MaxEntries)
		mem.StartSweeper(cfg.SweepInterval)
		store, stop = mem, mem.Stop
	case config.BackendFile:
		store, err = cache.NewFile(cfg.CacheDir)
	case config.BackendRedis:
		store, err = cache.NewRedis(cfg.RedisURL)
	default:
		err = errors.New("unknown cache backend " + cfg.CacheBackend)
	}
	if err != nil {
		return nil, nil, err
	}

	limiter := ratelimit.New(ratelimit.Config{Limit: cfg.RateLimit, Period: cfg.RatePeriod})
	breaker := circuitbreaker.New(cfg.FailureThreshold, cfg.OpenTimeout)
	router := degrade.NewRouter()

	backendStop := stop
	stop = func() {
		limiter.Stop()
		backendStop()
	}

	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.MaxAttempts
	policy.BaseDelay = cfg.RetryBaseDelay

	base := []Option{
		WithRetryPolicy(policy),
		WithProducerTimeout(cfg.ProducerTimeout),
	}
	g := New(store, limiter, breaker, router, append(base, opts...)...)
	return g, stop, nil
}

// Cache exposes the gateway's cache manager, mainly for stats reporting.
func (g *Gateway) Cache() *cache.Manager { return g.store }

// Breaker exposes the circuit breaker for health reporting.
func (g *Gateway) Breaker() *circuitbreaker.Breaker { return g.breaker }

// Router exposes the degradation router for health reporting.
func (g *Gateway) Router() *degrade.Router { return g.router }

// Fetch returns the payload for key, serving from cache when possible and
// otherwise acquiring it from the upstream service. Concurrent misses for
// the same key are coalesced into a single producer invocation. fallback
// may be nil; when present it is invoked after the producer's retries are
// exhausted, and its result is cached with a shortened TTL.
func (g *Gateway) Fetch(ctx context.Context, service, key string, ttl time.Duration, producer, fallback Producer) ([]byte, error) {
	if payload, ok := g.lookup(service, key); ok {
		return payload, nil
	}

	v, err, _ := g.flights.Do(key, func() (any, error) {
		// A coalesced waiter may arrive after the winner populated the
		// cache but before the flight is forgotten.
		if payload, ok := g.lookup(service, key); ok {
			return payload, nil
		}
		return g.acquire(ctx, service, key, ttl, producer, fallback)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Invalidate removes key from the cache.
func (g *Gateway) Invalidate(key string) error {
	return g.store.Delete(key)
}

func (g *Gateway) lookup(service, key string) ([]byte, bool) {
	payload, ok, err := g.store.Get(key)
	if err != nil {
		// Cache trouble degrades to a miss, never a failed fetch.
		g.logger.Warn("cache read failed", "service", service, "key", key, "error", err)
		return nil, false
	}
	return payload, ok
}

func (g *Gateway) acquire(ctx context.Context, service, key string, ttl time.Duration, producer, fallback Producer) ([]byte, error) {
	if !g.router.Healthy(service) {
		return g.degraded(ctx, service, key, ttl, fallback, ErrServiceDegraded)
	}

	if err := g.limiter.Admit(service); err != nil {
		var throttle *ratelimit.ThrottleError
		if errors.As(err, &throttle) {
			return nil, &RateLimitError{Service: service, RetryAfter: throttle.RetryAfter}
		}
		return nil, err
	}

	if !g.breaker.Allow(service) {
		return nil, &CircuitOpenError{Service: service, RetryAfter: g.breaker.RetryAfter(service)}
	}

	payload, err := g.produce(ctx, service, producer)
	if err == nil {
		g.cacheSet(service, key, payload, ttl)
		return payload, nil
	}

	g.logger.Warn("producer failed, degrading", "service", service, "error", err)
	g.router.MarkUnhealthy(service)
	return g.degraded(ctx, service, key, ttl, fallback, err)
}

// produce runs the producer under the retry policy with a per-attempt
// timeout, and settles the breaker once with the final outcome. A timed-out
// attempt counts as a failure.
func (g *Gateway) produce(ctx context.Context, service string, producer Producer) ([]byte, error) {
	policy := g.policy
	policy.OnRetry = func(attempt int, err error) {
		g.logger.Debug("retrying producer", "service", service, "attempt", attempt, "error", err)
	}

	var payload []byte
	err := policy.Do(ctx, func() error {
		attemptCtx := ctx
		if g.producerTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, g.producerTimeout)
			defer cancel()
		}
		p, perr := producer(attemptCtx)
		if perr != nil {
			return perr
		}
		payload = p
		return nil
	})
	if err != nil {
		g.breaker.RecordFailure(service)
		metrics.UpstreamFailuresTotal.WithLabelValues(service).Inc()
		return nil, err
	}
	g.breaker.RecordSuccess(service)
	return payload, nil
}

func (g *Gateway) degraded(ctx context.Context, service, key string, ttl time.Duration, fallback Producer, cause error) ([]byte, error) {
	if fallback == nil {
		return nil, &UpstreamError{Service: service, Err: cause}
	}
	payload, err := fallback(ctx)
	if err != nil {
		return nil, &UpstreamError{Service: service, Err: errors.Join(cause, err)}
	}
	metrics.FallbackServesTotal.WithLabelValues(service).Inc()
	g.logger.Info("served fallback payload", "service", service, "key", key)
	g.cacheSet(service, key, payload, ttl/staleTTLDivisor)
	return payload, nil
}

func (g *Gateway) cacheSet(service, key string, payload []byte, ttl time.Duration) {
	if err := g.store.Set(key, payload, ttl); err != nil {
		g.logger.Warn("cache write failed", "service", service, "key", key, "error", err)
	}
}
