package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestInitializeDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Initialize(filepath.Join(t.TempDir(), ConfigFileName))
	require.NoError(t, err)

	assert.Equal(t, int64(100), cfg.Engine.MaxSystemTenantID)
	assert.Equal(t, 10, cfg.Engine.MaxNestingDepth)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 4, cfg.Queue.WorkerCount)
	assert.True(t, cfg.SchedulerEnabled())
	assert.Equal(t, 8080, cfg.HTTP.Port)
}

func TestInitializeMergesUserOverDefaults(t *testing.T) {
	path := writeConfig(t, `
engine:
  max_system_tenant_id: 50
  snapshot_ttl: 10m
cache:
  backend: redis
  redis_addr: cache.internal:6379
queue:
  worker_count: 8
scheduler:
  enabled: false
`)

	cfg, err := Initialize(path)
	require.NoError(t, err)

	assert.Equal(t, int64(50), cfg.Engine.MaxSystemTenantID)
	assert.Equal(t, 10*time.Minute, cfg.Engine.SnapshotTTL)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "cache.internal:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, 8, cfg.Queue.WorkerCount)
	assert.False(t, cfg.SchedulerEnabled())

	// Untouched sections keep the defaults.
	assert.Equal(t, 10, cfg.Engine.MaxNestingDepth)
	assert.Equal(t, 256, cfg.Queue.BufferSize)
	assert.Equal(t, 8080, cfg.HTTP.Port)
}

func TestInitializeExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_REDIS_ADDR", "redis.example:6390")
	path := writeConfig(t, `
cache:
  backend: redis
  redis_addr: "{{.TEST_REDIS_ADDR}}"
`)

	cfg, err := Initialize(path)
	require.NoError(t, err)
	assert.Equal(t, "redis.example:6390", cfg.Cache.RedisAddr)
}

func TestInitializeRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad cache backend", "cache:\n  backend: memcached\n"},
		{"bad worker count", "queue:\n  worker_count: -1\n"},
		{"bad port", "http:\n  port: 70000\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Initialize(writeConfig(t, tt.content))
			assert.ErrorIs(t, err, ErrInvalidValue)
		})
	}
}

func TestInitializeRejectsInvalidYAML(t *testing.T) {
	_, err := Initialize(writeConfig(t, "engine:\n  max_nesting_depth: [unclosed\n"))
	assert.Error(t, err)
}
