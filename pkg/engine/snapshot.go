// Package engine wires the scenario core: per-tenant snapshot cache, loader,
// finder, step executor, transition handling, cache merging, and the facade
// that processes incoming events.
package engine

import (
	"sync"
	"time"

	"github.com/botforge/scenario/pkg/condition"
	"github.com/botforge/scenario/pkg/models"
)

// Snapshot is the read-only per-tenant bundle used during event processing.
// A snapshot is never mutated after construction; reloads replace the whole
// snapshot atomically, so an in-flight execution keeps the one it started
// with.
type Snapshot struct {
	TenantID int64
	BuiltAt  time.Time

	Tree          *condition.Tree
	ScenarioIndex map[int64]*models.Scenario
	NameIndex     map[string]int64
}

// ScenarioByName resolves a scenario through the name index.
func (s *Snapshot) ScenarioByName(name string) (*models.Scenario, bool) {
	id, ok := s.NameIndex[name]
	if !ok {
		return nil, false
	}
	sc, ok := s.ScenarioIndex[id]
	return sc, ok
}

// SnapshotCache maps tenant ids to snapshots. Reads return the current
// snapshot reference; Set replaces the binding atomically, leaving earlier
// readers on the old snapshot. A zero TTL keeps snapshots forever.
type SnapshotCache struct {
	mu        sync.RWMutex
	snapshots map[int64]*Snapshot
	ttl       time.Duration
}

// NewSnapshotCache creates a snapshot cache with the given TTL
// (0 disables expiry).
func NewSnapshotCache(ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{
		snapshots: make(map[int64]*Snapshot),
		ttl:       ttl,
	}
}

// Get returns the tenant's snapshot, or nil when absent or expired.
func (c *SnapshotCache) Get(tenantID int64) *Snapshot {
	c.mu.RLock()
	snap, ok := c.snapshots[tenantID]
	c.mu.RUnlock()

	if !ok {
		return nil
	}
	if c.ttl > 0 && time.Since(snap.BuiltAt) > c.ttl {
		return nil
	}
	return snap
}

// Set installs a tenant's snapshot.
func (c *SnapshotCache) Set(tenantID int64, snap *Snapshot) {
	c.mu.Lock()
	c.snapshots[tenantID] = snap
	c.mu.Unlock()
}

// Exists reports whether a live snapshot is cached for the tenant.
func (c *SnapshotCache) Exists(tenantID int64) bool {
	return c.Get(tenantID) != nil
}

// Delete drops a tenant's snapshot.
func (c *SnapshotCache) Delete(tenantID int64) {
	c.mu.Lock()
	delete(c.snapshots, tenantID)
	c.mu.Unlock()
}

// Tenants returns the tenant ids with cached snapshots.
func (c *SnapshotCache) Tenants() []int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]int64, 0, len(c.snapshots))
	for id := range c.snapshots {
		ids = append(ids, id)
	}
	return ids
}
