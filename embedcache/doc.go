// Package embedcache holds the bounded, time-limited cache of query text to
// embedding vector used by the ai.Gateway.
//
// The cache is never a correctness dependency: every backend failure is
// logged and reported as a miss, and a miss simply re-invokes the provider.
//
//   - Memory: process-local LRU with per-entry TTL (hashicorp/golang-lru expirable)
//   - Redis: shared second tier, vectors encoded with msgpack
//   - Tiered: checks tiers in order and backfills faster tiers on a hit
//   - Bus: typed invalidation events delivered to bound caches
package embedcache
