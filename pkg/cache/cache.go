// Package cache provides the key-value cache used for bot ids, tenant
// config and other small lookups: an in-memory TTL store and a Redis-backed
// store behind one interface.
package cache

import (
	"context"
	"strconv"
	"time"
)

// Store is the engine's key-value cache contract. Implementations must be
// safe for concurrent use.
type Store interface {
	// Get returns the cached value, or false when absent or expired.
	Get(ctx context.Context, key string) (any, bool)
	// Set stores a value with a TTL; ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, val any, ttl time.Duration) error
	// Exists reports whether the key is present and unexpired.
	Exists(ctx context.Context, key string) bool
	// Delete removes a key; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// InvalidatePattern removes every key matching a glob-style pattern
	// (e.g. "tenant:42:*") and returns the number removed.
	InvalidatePattern(ctx context.Context, pattern string) (int, error)
}

// BotIDKey is the cache key for a tenant's bot id.
func BotIDKey(tenantID int64) string {
	return "tenant:" + strconv.FormatInt(tenantID, 10) + ":bot_id"
}

// TenantConfigKey is the cache key for a tenant's config map.
func TenantConfigKey(tenantID int64) string {
	return "tenant:" + strconv.FormatInt(tenantID, 10) + ":config"
}

// TenantPattern matches every cache key belonging to a tenant.
func TenantPattern(tenantID int64) string {
	return "tenant:" + strconv.FormatInt(tenantID, 10) + ":*"
}
