// Package cache provides TTL key/value storage behind a pluggable backend.
//
// Three backends are supported: an in-memory LRU map, a file-backed store
// for local development, and redis for shared deployments. Callers only
// ever see the Store interface; expired entries read as absent, never as
// errors, and backend failures are recoverable (the gateway treats them
// as misses).
package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Store is the uniform contract all cache backends implement.
type Store interface {
	// Get returns the payload for key, or ok=false if the key is absent
	// or expired. A non-nil error signals a backend fault, not a miss.
	Get(key string) (payload []byte, ok bool, err error)

	// Set stores payload under key for ttl. A non-positive ttl means the
	// entry never expires.
	Set(key string, payload []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error

	// Purge removes expired entries and returns how many were removed.
	Purge() (int, error)

	// Name identifies the backend ("memory", "file", "redis").
	Name() string
}

// BackendError wraps a backend fault. Callers treat it as a miss.
type BackendError struct {
	Backend string
	Op      string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("cache %s: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Key builds a cache key from parts, joined with ':'.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// Stats holds hit/miss counters for a Manager.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Sets    int64   `json:"sets"`
	Deletes int64   `json:"deletes"`
	HitRate float64 `json:"hitRate"`
}

// Manager wraps a Store with hit/miss accounting. It implements Store
// itself so callers can layer it transparently.
type Manager struct {
	backend Store

	mu      sync.Mutex
	hits    int64
	misses  int64
	sets    int64
	deletes int64
}

// NewManager wraps backend with stat tracking.
func NewManager(backend Store) *Manager {
	return &Manager{backend: backend}
}

func (m *Manager) Get(key string) ([]byte, bool, error) {
	payload, ok, err := m.backend.Get(key)

	m.mu.Lock()
	if ok {
		m.hits++
	} else {
		m.misses++
	}
	m.mu.Unlock()

	return payload, ok, err
}

func (m *Manager) Set(key string, payload []byte, ttl time.Duration) error {
	err := m.backend.Set(key, payload, ttl)
	if err == nil {
		m.mu.Lock()
		m.sets++
		m.mu.Unlock()
	}
	return err
}

func (m *Manager) Delete(key string) error {
	err := m.backend.Delete(key)
	if err == nil {
		m.mu.Lock()
		m.deletes++
		m.mu.Unlock()
	}
	return err
}

func (m *Manager) Purge() (int, error) { return m.backend.Purge() }

func (m *Manager) Name() string { return m.backend.Name() }

// Stats returns a snapshot of the manager's counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{Hits: m.hits, Misses: m.misses, Sets: m.sets, Deletes: m.deletes}
	if total := m.hits + m.misses; total > 0 {
		s.HitRate = float64(m.hits) / float64(total)
	}
	return s
}
