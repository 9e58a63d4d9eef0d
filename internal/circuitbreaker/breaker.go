// Package circuitbreaker provides a per-service circuit breaker with
// closed → open → half-open state transitions.
package circuitbreaker

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = iota // Normal: calls flow through
	StateOpen                  // Tripped: calls are rejected without reaching upstream
	StateHalfOpen              // Probing: exactly one trial call allowed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

var stateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "nichescope",
	Subsystem: "circuitbreaker",
	Name:      "state_transitions_total",
	Help:      "Circuit breaker state transitions by service, from-state, and to-state.",
}, []string{"service", "from_state", "to_state"})

func init() {
	prometheus.MustRegister(stateTransitions)
}

// circuit tracks one service's breaker state under its own lock, so
// unrelated services never contend.
type circuit struct {
	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
}

// Breaker is a per-service circuit breaker. Consecutive failures at or
// above the threshold trip the circuit open; after openTimeout the next
// Allow wins a single half-open trial. Breakers are plain values owned by
// whoever constructs them — there is no process-wide instance.
type Breaker struct {
	circuits    sync.Map // map[string]*circuit
	threshold   int
	openTimeout time.Duration
	now         func() time.Time

	mu           sync.Mutex // guards onTransition
	onTransition func(service string, from, to State)
}

// New creates a circuit breaker that opens after threshold consecutive
// failures and stays open for openTimeout before probing.
func New(threshold int, openTimeout time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}
	return &Breaker{
		threshold:   threshold,
		openTimeout: openTimeout,
		now:         time.Now,
	}
}

// OnTransition sets a callback invoked synchronously on state changes.
// It is safe to call while the breaker is in use.
func (b *Breaker) OnTransition(fn func(service string, from, to State)) {
	b.mu.Lock()
	b.onTransition = fn
	b.mu.Unlock()
}

// Allow reports whether a call to service may proceed. When the circuit
// is open and openTimeout has elapsed, exactly one caller wins the
// half-open trial; concurrent callers are rejected until the trial
// completes via RecordSuccess or RecordFailure.
func (b *Breaker) Allow(service string) bool {
	c := b.getCircuit(service)

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(c.lastFailure) >= b.openTimeout {
			b.transition(c, service, StateHalfOpen)
			return true
		}
		return false
	case StateHalfOpen:
		return false // Trial already in flight
	default:
		return true
	}
}

// RecordSuccess records a successful call. It zeroes the failure count
// and closes the circuit if a half-open trial succeeded.
func (b *Breaker) RecordSuccess(service string) {
	c := b.getCircuit(service)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateHalfOpen {
		b.transition(c, service, StateClosed)
	}
	c.failures = 0
}

// RecordFailure records a failed call (timeouts count as failures). At
// the threshold the circuit trips open; a failed half-open trial reopens
// the circuit and restarts the open timer.
func (b *Breaker) RecordFailure(service string) {
	c := b.getCircuit(service)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.failures++
	c.lastFailure = b.now()

	if c.state == StateHalfOpen {
		b.transition(c, service, StateOpen)
		return
	}

	if c.state == StateClosed && c.failures >= b.threshold {
		b.transition(c, service, StateOpen)
	}
}

// State returns the current state for a service. Unknown services are closed.
func (b *Breaker) State(service string) State {
	c := b.getCircuit(service)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RetryAfter returns how long until an open circuit will admit a trial
// call, or zero if the circuit is not open.
func (b *Breaker) RetryAfter(service string) time.Duration {
	c := b.getCircuit(service)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOpen {
		return 0
	}
	remaining := b.openTimeout - b.now().Sub(c.lastFailure)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Snapshot returns the state of every service the breaker has seen.
func (b *Breaker) Snapshot() map[string]State {
	states := make(map[string]State)
	b.circuits.Range(func(key, value any) bool {
		c := value.(*circuit)
		c.mu.Lock()
		states[key.(string)] = c.state
		c.mu.Unlock()
		return true
	})
	return states
}

func (b *Breaker) getCircuit(service string) *circuit {
	if c, ok := b.circuits.Load(service); ok {
		return c.(*circuit)
	}
	c, _ := b.circuits.LoadOrStore(service, &circuit{state: StateClosed})
	return c.(*circuit)
}

// transition changes state and fires the callback if set.
// Caller must hold c.mu.
func (b *Breaker) transition(c *circuit, service string, to State) {
	from := c.state
	if from == to {
		return
	}
	c.state = to
	stateTransitions.WithLabelValues(service, from.String(), to.String()).Inc()
	b.mu.Lock()
	fn := b.onTransition
	b.mu.Unlock()
	if fn != nil {
		fn(service, from, to)
	}
}
