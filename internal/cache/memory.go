package cache

import (
	"sync"
	"time"

	"github.com/nichescope/nichescope/internal/metrics"
)

// entry is a stored payload with its expiry bookkeeping.
type entry struct {
	payload    []byte
	createdAt  time.Time
	expiresAt  time.Time // zero = never expires
	lastAccess time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Memory is an in-memory Store with LRU eviction at capacity and lazy
// expiry on read. Safe for concurrent use.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]*entry
	maxEntries int
	now        func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemory creates a memory store holding at most maxEntries items.
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &Memory{
		entries:    make(map[string]*entry),
		maxEntries: maxEntries,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		metrics.CacheMissesTotal.WithLabelValues("memory").Inc()
		return nil, false, nil
	}

	now := m.now()
	if e.expired(now) {
		delete(m.entries, key)
		metrics.CacheMissesTotal.WithLabelValues("memory").Inc()
		return nil, false, nil
	}

	e.lastAccess = now
	metrics.CacheHitsTotal.WithLabelValues("memory").Inc()
	return e.payload, true, nil
}

func (m *Memory) Set(key string, payload []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxEntries {
		m.evictLRU()
	}

	now := m.now()
	e := &entry{
		payload:    payload,
		createdAt:  now,
		lastAccess: now,
	}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	m.entries[key] = e
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Purge() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of live entries, expired included until purged.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// StartSweeper purges expired entries every interval until Stop is called.
func (m *Memory) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_, _ = m.Purge()
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop stops the sweeper goroutine if one is running.
func (m *Memory) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// evictLRU removes the least recently accessed entry.
// Caller must hold m.mu.
func (m *Memory) evictLRU() {
	var oldestKey string
	var oldest time.Time
	for key, e := range m.entries {
		if oldestKey == "" || e.lastAccess.Before(oldest) {
			oldestKey = key
			oldest = e.lastAccess
		}
	}
	if oldestKey != "" {
		delete(m.entries, oldestKey)
	}
}
