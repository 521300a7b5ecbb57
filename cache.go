package skyodyssey

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

// CacheStore is the durable fare cache consulted before any network call.
// Get never fails on a miss; it simply reports not-found. Sweep removes
// expired entries and unconditionally purges entries holding a non-positive
// price, returning how many were dropped. Implementations must be safe for
// concurrent use; last-write-wins is acceptable.
type CacheStore interface {
	Get(ctx context.Context, key string) (*CacheEntry, bool)
	Set(ctx context.Context, key string, entry *CacheEntry, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Sweep(ctx context.Context) int
}

// InMemoryCache is a sharded in-memory CacheStore. It is the default backend;
// the redis and postgres stores provide durability across restarts.
type InMemoryCache struct {
	shards    []*cacheShard
	numShards int
	ttl       time.Duration
}

type cacheShard struct {
	mu    sync.RWMutex
	store map[string]*cachedFare
}

type cachedFare struct {
	entry     *CacheEntry
	expiresAt time.Time
}

// NewInMemoryCache creates an in-memory cache with the default 6h TTL.
func NewInMemoryCache() *InMemoryCache {
	numShards := 16
	shards := make([]*cacheShard, numShards)
	for i := range shards {
		shards[i] = &cacheShard{store: make(map[string]*cachedFare)}
	}
	return &InMemoryCache{shards: shards, numShards: numShards, ttl: DefaultCacheTTL}
}

func (c *InMemoryCache) getShard(key string) *cacheShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%uint32(c.numShards)]
}

// Get returns a fresh entry for key. Expired and invalid-price entries are
// dropped on sight and reported as misses.
func (c *InMemoryCache) Get(ctx context.Context, key string) (*CacheEntry, bool) {
	shard := c.getShard(key)
	shard.mu.RLock()
	cf, exists := shard.store[key]
	shard.mu.RUnlock()
	if !exists {
		return nil, false
	}

	if time.Now().After(cf.expiresAt) || cf.entry.invalid() {
		shard.mu.Lock()
		if shard.store[key] == cf {
			delete(shard.store, key)
		}
		shard.mu.Unlock()
		return nil, false
	}
	return cf.entry, true
}

// Set stores an entry under key for ttl. Invalid-price fares are refused.
func (c *InMemoryCache) Set(ctx context.Context, key string, entry *CacheEntry, ttl time.Duration) {
	if entry == nil || entry.invalid() {
		return
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	shard := c.getShard(key)
	shard.mu.Lock()
	shard.store[key] = &cachedFare{entry: entry, expiresAt: time.Now().Add(ttl)}
	shard.mu.Unlock()
}

// Delete removes key from the cache.
func (c *InMemoryCache) Delete(ctx context.Context, key string) {
	shard := c.getShard(key)
	shard.mu.Lock()
	delete(shard.store, key)
	shard.mu.Unlock()
}

// Sweep removes every expired or invalid-price entry.
func (c *InMemoryCache) Sweep(ctx context.Context) int {
	now := time.Now()
	removed := 0
	for _, shard := range c.shards {
		shard.mu.Lock()
		for key, cf := range shard.store {
			if now.After(cf.expiresAt) || cf.entry.invalid() {
				delete(shard.store, key)
				removed++
			}
		}
		shard.mu.Unlock()
	}
	return removed
}

// Len returns the number of live entries across all shards.
func (c *InMemoryCache) Len() int {
	total := 0
	for _, shard := range c.shards {
		shard.mu.RLock()
		total += len(shard.store)
		shard.mu.RUnlock()
	}
	return total
}
