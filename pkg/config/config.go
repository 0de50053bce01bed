// Package config loads and validates the engine's YAML configuration.
package config

import "time"

// Config is the fully resolved engine configuration.
type Config struct {
	Engine    *EngineConfig    `yaml:"engine"`
	Cache     *CacheConfig     `yaml:"cache"`
	Queue     *QueueConfig     `yaml:"queue"`
	Scheduler *SchedulerConfig `yaml:"scheduler"`
	HTTP      *HTTPConfig      `yaml:"http"`
}

// EngineConfig holds the executor's invariants.
type EngineConfig struct {
	// Tenant ids at or below this are system tenants, protected from
	// public mutation endpoints.
	MaxSystemTenantID int64 `yaml:"max_system_tenant_id"`
	// Placeholder recursion bound.
	MaxNestingDepth int `yaml:"max_nesting_depth"`
	// Snapshot lifetime; 0 keeps snapshots until an explicit reload.
	SnapshotTTL time.Duration `yaml:"snapshot_ttl"`
}

// CacheConfig selects and tunes the key-value cache backend.
type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend       string        `yaml:"backend"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	// TTL for bot ids and tenant config entries.
	EntryTTL time.Duration `yaml:"entry_ttl"`
}

// QueueConfig holds event worker pool settings.
type QueueConfig struct {
	WorkerCount int `yaml:"worker_count"`
	BufferSize  int `yaml:"buffer_size"`
}

// SchedulerConfig toggles the cron dispatcher.
type SchedulerConfig struct {
	Enabled *bool `yaml:"enabled"`
}

// HTTPConfig holds the API server settings.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// SchedulerEnabled resolves the tri-state enabled flag (default true).
func (c *Config) SchedulerEnabled() bool {
	if c.Scheduler == nil || c.Scheduler.Enabled == nil {
		return true
	}
	return *c.Scheduler.Enabled
}

// DefaultConfig returns the built-in configuration; user YAML is merged on
// top of it.
func DefaultConfig() *Config {
	enabled := true
	return &Config{
		Engine: &EngineConfig{
			MaxSystemTenantID: 100,
			MaxNestingDepth:   10,
			SnapshotTTL:       0,
		},
		Cache: &CacheConfig{
			Backend:   "memory",
			RedisAddr: "localhost:6379",
			EntryTTL:  time.Hour,
		},
		Queue: &QueueConfig{
			WorkerCount: 4,
			BufferSize:  256,
		},
		Scheduler: &SchedulerConfig{Enabled: &enabled},
		HTTP: &HTTPConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
	}
}
