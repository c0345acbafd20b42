package embedcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10, time.Minute)

	_, ok := m.Get(ctx, "missing")
	assert.False(t, ok)

	m.Set(ctx, "k", []float32{0.1, 0.2})
	v, ok := m.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []float32{0.1, 0.2}, v)
	assert.Equal(t, 1, m.Len())
}

func TestMemory_Bounded(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2, time.Minute)

	m.Set(ctx, "a", []float32{1})
	m.Set(ctx, "b", []float32{2})
	m.Set(ctx, "c", []float32{3})

	assert.Equal(t, 2, m.Len())
	_, ok := m.Get(ctx, "a")
	assert.False(t, ok, "least recently used entry is evicted")
}

func TestMemory_Expires(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10, 30*time.Millisecond)

	m.Set(ctx, "k", []float32{1})
	assert.Eventually(t, func() bool {
		_, ok := m.Get(ctx, "k")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestMemory_InvalidateAndPurge(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0, 0)

	m.Set(ctx, "a", []float32{1})
	m.Set(ctx, "b", []float32{2})
	m.Invalidate(ctx, "a")
	_, ok := m.Get(ctx, "a")
	assert.False(t, ok)

	m.Purge(ctx)
	assert.Equal(t, 0, m.Len())
}
