package embedcache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/poiesic/keywordlens/ai"
)

const (
	DefaultSize = 1024
	DefaultTTL  = 5 * time.Minute
)

// Tier is a cache level that can be invalidated.
type Tier interface {
	ai.VectorCache
	Invalidate(ctx context.Context, key string)
	Purge(ctx context.Context)
}

// Memory is a size-bounded in-process cache whose entries expire after a TTL.
type Memory struct {
	lru *expirable.LRU[string, []float32]
}

var _ Tier = (*Memory)(nil)

// NewMemory creates a cache holding at most size entries for ttl each.
// Non-positive arguments fall back to DefaultSize and DefaultTTL.
func NewMemory(size int, ttl time.Duration) *Memory {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{lru: expirable.NewLRU[string, []float32](size, nil, ttl)}
}

func (m *Memory) Get(_ context.Context, key string) ([]float32, bool) {
	return m.lru.Get(key)
}

func (m *Memory) Set(_ context.Context, key string, v []float32) {
	m.lru.Add(key, v)
}

func (m *Memory) Invalidate(_ context.Context, key string) {
	m.lru.Remove(key)
}

func (m *Memory) Purge(_ context.Context) {
	m.lru.Purge()
}

// Len returns the number of live entries.
func (m *Memory) Len() int {
	return m.lru.Len()
}
