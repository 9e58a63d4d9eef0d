package cache

import (
	"testing"
	"time"
)

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory(10)

	if err := m.Set("k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	payload, ok, err := m.Get("k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("expected hit before ttl")
	}
	if string(payload) != "v" {
		t.Fatalf("payload = %q, want %q", payload, "v")
	}
}

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory(10)
	now := time.Now()
	m.now = func() time.Time { return now }

	if err := m.Set("k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	// Advance past the ttl; the entry must read as absent, not error.
	now = now.Add(61 * time.Second)
	_, ok, err := m.Get("k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatal("expected miss after ttl elapsed")
	}

	// The expired entry was purged on read.
	if m.Len() != 0 {
		t.Fatalf("expected lazy purge, have %d entries", m.Len())
	}
}

func TestMemoryNoTTLNeverExpires(t *testing.T) {
	m := NewMemory(10)
	now := time.Now()
	m.now = func() time.Time { return now }

	_ = m.Set("k", []byte("v"), 0)
	now = now.Add(1000 * time.Hour)

	if _, ok, _ := m.Get("k"); !ok {
		t.Fatal("ttl-less entry should not expire")
	}
}

func TestMemoryLRUEviction(t *testing.T) {
	m := NewMemory(2)
	now := time.Now()
	m.now = func() time.Time { return now }

	_ = m.Set("a", []byte("1"), time.Minute)
	now = now.Add(time.Second)
	_ = m.Set("b", []byte("2"), time.Minute)
	now = now.Add(time.Second)

	// Touch "a" so "b" becomes least recently used.
	_, _, _ = m.Get("a")
	now = now.Add(time.Second)

	_ = m.Set("c", []byte("3"), time.Minute)

	if _, ok, _ := m.Get("b"); ok {
		t.Fatal("expected b to be evicted")
	}
	if _, ok, _ := m.Get("a"); !ok {
		t.Fatal("expected a to survive")
	}
	if _, ok, _ := m.Get("c"); !ok {
		t.Fatal("expected c to be present")
	}
}

func TestMemoryPurge(t *testing.T) {
	m := NewMemory(10)
	now := time.Now()
	m.now = func() time.Time { return now }

	_ = m.Set("live", []byte("1"), time.Hour)
	_ = m.Set("dead1", []byte("2"), time.Second)
	_ = m.Set("dead2", []byte("3"), time.Second)

	now = now.Add(2 * time.Second)

	removed, err := m.Purge()
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if m.Len() != 1 {
		t.Fatalf("len = %d, want 1", m.Len())
	}
}

func TestManagerStats(t *testing.T) {
	mgr := NewManager(NewMemory(10))

	_ = mgr.Set("k", []byte("v"), time.Minute)
	_, _, _ = mgr.Get("k")
	_, _, _ = mgr.Get("missing")
	_ = mgr.Delete("k")

	s := mgr.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.Sets != 1 || s.Deletes != 1 {
		t.Fatalf("stats = %+v", s)
	}
	if s.HitRate != 0.5 {
		t.Fatalf("hit rate = %v, want 0.5", s.HitRate)
	}
}

func TestKeyBuilder(t *testing.T) {
	if got := Key("trends", "analysis", "yoga journal"); got != "trends:analysis:yoga journal" {
		t.Fatalf("Key = %q", got)
	}
}
