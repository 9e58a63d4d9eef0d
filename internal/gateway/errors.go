package gateway

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrServiceDegraded reports that the service is flagged unhealthy and the
// gateway routed straight to the fallback without calling upstream.
var ErrServiceDegraded = errors.New("service degraded")

// RateLimitError reports a call rejected by the per-service rate limiter.
// The limiter's rejection never reaches the circuit breaker.
type RateLimitError struct {
	Service    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.Service, e.RetryAfter)
}

// RetryAfterSeconds returns RetryAfter rounded up to whole seconds, the
// granularity callers report back to clients. A positive sub-second wait
// still reports 1.
func (e *RateLimitError) RetryAfterSeconds() int {
	return int(math.Ceil(e.RetryAfter.Seconds()))
}

// CircuitOpenError reports a call rejected by an open circuit. RetryAfter
// is the time until the breaker will admit a trial call.
type CircuitOpenError struct {
	Service    string
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open for %s, retry after %s", e.Service, e.RetryAfter)
}

// UpstreamError reports that the producer's retries were exhausted and no
// fallback could serve the request. Err carries the underlying cause, and
// both causes joined when the fallback itself failed.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s failed: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
