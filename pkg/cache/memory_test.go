package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySetGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "k", "v", 0))
	got, ok := m.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", got)

	_, ok = m.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestMemoryTTLExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "k", "v", 10*time.Millisecond))
	assert.True(t, m.Exists(ctx, "k"))

	time.Sleep(25 * time.Millisecond)
	_, ok := m.Get(ctx, "k")
	assert.False(t, ok)
	assert.False(t, m.Exists(ctx, "k"))
}

func TestMemoryZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "k", 42, 0))
	time.Sleep(5 * time.Millisecond)
	got, ok := m.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, 42, got)
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "k", "v", 0))
	require.NoError(t, m.Delete(ctx, "k"))
	assert.False(t, m.Exists(ctx, "k"))

	// Deleting a missing key is fine.
	require.NoError(t, m.Delete(ctx, "k"))
}

func TestMemoryInvalidatePattern(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, BotIDKey(1), int64(7), 0))
	require.NoError(t, m.Set(ctx, TenantConfigKey(1), map[string]any{}, 0))
	require.NoError(t, m.Set(ctx, BotIDKey(2), int64(8), 0))

	removed, err := m.InvalidatePattern(ctx, TenantPattern(1))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.False(t, m.Exists(ctx, BotIDKey(1)))
	assert.True(t, m.Exists(ctx, BotIDKey(2)))
}

func TestMemoryConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			_ = m.Set(ctx, "k", i, time.Millisecond)
		}
	}()
	for i := 0; i < 500; i++ {
		m.Get(ctx, "k")
	}
	<-done
}
