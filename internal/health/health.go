// Package health aggregates component checks into a single rollup status.
package health

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nichescope/nichescope/internal/cache"
	"github.com/nichescope/nichescope/internal/circuitbreaker"
	"github.com/nichescope/nichescope/internal/degrade"
)

// State is a component's health grade.
type State int

const (
	StateHealthy State = iota
	StateDegraded
	StateUnhealthy
)

func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateUnhealthy:
		return "unhealthy"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Status is one component's check result.
type Status struct {
	Name   string `json:"name" yaml:"name"`
	State  State  `json:"state" yaml:"state"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Checker probes one component.
type Checker func(ctx context.Context) Status

// Registry holds named checkers and rolls their results up.
type Registry struct {
	mu       sync.Mutex
	checkers []Checker
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a checker. Checkers run in registration order.
func (r *Registry) Register(c Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers = append(r.checkers, c)
}

// CheckAll runs every checker. The rollup is the worst individual state:
// any unhealthy component makes the whole unhealthy, else any degraded
// component makes it degraded.
func (r *Registry) CheckAll(ctx context.Context) (State, []Status) {
	r.mu.Lock()
	checkers := make([]Checker, len(r.checkers))
	copy(checkers, r.checkers)
	r.mu.Unlock()

	overall := StateHealthy
	statuses := make([]Status, 0, len(checkers))
	for _, c := range checkers {
		st := c(ctx)
		statuses = append(statuses, st)
		if st.State > overall {
			overall = st.State
		}
	}
	return overall, statuses
}

// CacheChecker verifies the store with a set/get round trip on a probe key.
func CacheChecker(m *cache.Manager) Checker {
	return func(ctx context.Context) Status {
		key := cache.Key("health", "probe")
		if err := m.Set(key, []byte("ok"), 30*time.Second); err != nil {
			return Status{Name: "cache", State: StateUnhealthy, Detail: err.Error()}
		}
		payload, ok, err := m.Get(key)
		if err != nil {
			return Status{Name: "cache", State: StateUnhealthy, Detail: err.Error()}
		}
		if !ok || string(payload) != "ok" {
			return Status{Name: "cache", State: StateUnhealthy, Detail: "probe round trip failed"}
		}
		return Status{Name: "cache", State: StateHealthy, Detail: m.Name()}
	}
}

// BreakerChecker reports degraded while any service's circuit is not closed.
func BreakerChecker(b *circuitbreaker.Breaker) Checker {
	return func(ctx context.Context) Status {
		var open []string
		for service, state := range b.Snapshot() {
			if state != circuitbreaker.StateClosed {
				open = append(open, fmt.Sprintf("%s=%s", service, state))
			}
		}
		if len(open) == 0 {
			return Status{Name: "circuitbreaker", State: StateHealthy}
		}
		sort.Strings(open)
		return Status{Name: "circuitbreaker", State: StateDegraded, Detail: strings.Join(open, ", ")}
	}
}

// RouterChecker reports degraded while any service is flagged unhealthy.
func RouterChecker(r *degrade.Router) Checker {
	return func(ctx context.Context) Status {
		var flagged []string
		for service, healthy := range r.Snapshot() {
			if !healthy {
				flagged = append(flagged, service)
			}
		}
		if len(flagged) == 0 {
			return Status{Name: "degradation", State: StateHealthy}
		}
		sort.Strings(flagged)
		return Status{Name: "degradation", State: StateDegraded, Detail: strings.Join(flagged, ", ")}
	}
}
