package cache

import (
	"context"
	"path"
	"sync"
	"time"
)

// entry holds a cached value with its expiry; a zero expiresAt never
// expires.
type entry struct {
	val       any
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Memory is a thread-safe in-memory store with per-key TTL. Expired entries
// are cleaned up lazily on Get — no background goroutine.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*entry)}
}

// Get returns the value if present and not expired.
func (m *Memory) Get(_ context.Context, key string) (any, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, false
	}
	now := time.Now()
	if e.expired(now) {
		// Re-check under write lock: a concurrent Set may have replaced
		// the entry with a fresh one in between.
		m.mu.Lock()
		if current, ok := m.entries[key]; ok && current.expired(now) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false
	}
	return e.val, true
}

// Set stores a value; ttl <= 0 keeps it until deleted.
func (m *Memory) Set(_ context.Context, key string, val any, ttl time.Duration) error {
	e := &entry{val: val}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

// Exists reports presence without extending lifetimes.
func (m *Memory) Exists(ctx context.Context, key string) bool {
	_, ok := m.Get(ctx, key)
	return ok
}

// Delete removes a key.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// InvalidatePattern removes keys matching a glob pattern and returns how
// many were removed.
func (m *Memory) InvalidatePattern(_ context.Context, pattern string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key := range m.entries {
		ok, err := path.Match(pattern, key)
		if err != nil {
			return removed, err
		}
		if ok {
			delete(m.entries, key)
			removed++
		}
	}
	return removed, nil
}
