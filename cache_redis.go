package skyodyssey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// persistedFare is the wire layout of a cache entry. Field semantics match
// the durable cache contract exactly; both the redis and postgres backends
// round-trip through it.
type persistedFare struct {
	Price    float64   `json:"price"`
	RawPrice string    `json:"raw_price,omitempty"`
	Carrier  string    `json:"carrier,omitempty"`
	Stops    int       `json:"stops"`
	Depart   string    `json:"depart,omitempty"`
	Arrive   string    `json:"arrive,omitempty"`
	Duration string    `json:"duration,omitempty"`
	Link     string    `json:"link,omitempty"`
	NoFare   bool      `json:"no_fare,omitempty"`
	Origin   string    `json:"origin,omitempty"`
	Dest     string    `json:"destination,omitempty"`
	Date     string    `json:"date,omitempty"`
	StoredAt time.Time `json:"stored_at"`
}

func persistEntry(entry *CacheEntry) persistedFare {
	p := persistedFare{NoFare: entry.NoFare, StoredAt: entry.StoredAt}
	if f := entry.Fare; f != nil {
		p.Price = f.Price
		p.RawPrice = f.RawPrice
		p.Carrier = f.Carrier
		p.Stops = f.Stops
		p.Depart = f.Departure
		p.Arrive = f.Arrival
		p.Duration = f.Duration
		p.Link = f.BuyLink
		p.Origin = f.Origin
		p.Dest = f.Destination
		p.Date = f.Date
	}
	return p
}

func (p persistedFare) toEntry(key string) *CacheEntry {
	entry := &CacheEntry{Key: key, NoFare: p.NoFare, StoredAt: p.StoredAt}
	if !p.NoFare {
		entry.Fare = &LegResult{
			Origin:      p.Origin,
			Destination: p.Dest,
			Date:        p.Date,
			Price:       p.Price,
			RawPrice:    p.RawPrice,
			Carrier:     p.Carrier,
			Stops:       p.Stops,
			Departure:   p.Depart,
			Arrival:     p.Arrive,
			Duration:    p.Duration,
			BuyLink:     p.Link,
		}
	}
	return entry
}

// RedisCache is a redis-backed CacheStore. Expiry rides on native redis TTLs;
// Sweep only has to purge invalid-price entries.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	logger Logger
}

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// NewRedisCache wraps an existing redis client as a fare cache.
func NewRedisCache(client *redis.Client, logger Logger) *RedisCache {
	return &RedisCache{rdb: client, prefix: "fare:", ttl: DefaultCacheTTL, logger: logger}
}

// Get returns the fresh entry for key, if any. Backend errors degrade to a
// miss so a flaky cache never fails a search.
func (c *RedisCache) Get(ctx context.Context, key string) (*CacheEntry, bool) {
	raw, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) && c.logger != nil {
			c.logger.Warn("cache read error", "backend", "redis", "err", err)
		}
		return nil, false
	}
	var p persistedFare
	if err := json.Unmarshal(raw, &p); err != nil {
		_ = c.rdb.Del(ctx, c.prefix+key).Err()
		return nil, false
	}
	entry := p.toEntry(key)
	if entry.invalid() || entry.Expired(time.Now(), c.ttl) {
		_ = c.rdb.Del(ctx, c.prefix+key).Err()
		return nil, false
	}
	return entry, true
}

// Set stores entry under key with ttl.
func (c *RedisCache) Set(ctx context.Context, key string, entry *CacheEntry, ttl time.Duration) {
	if entry == nil || entry.invalid() {
		return
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	raw, err := json.Marshal(persistEntry(entry))
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.prefix+key, raw, ttl).Err(); err != nil && c.logger != nil {
		c.logger.Warn("cache write error", "backend", "redis", "err", err)
	}
}

// Delete removes key.
func (c *RedisCache) Delete(ctx context.Context, key string) {
	_ = c.rdb.Del(ctx, c.prefix+key).Err()
}

// Sweep scans the fare keyspace and purges entries with an invalid price or
// a stale stored-at. Redis drops expired keys on its own, but a sweep still
// guards against entries written with a longer TTL by older versions.
func (c *RedisCache) Sweep(ctx context.Context) int {
	removed := 0
	iter := c.rdb.Scan(ctx, 0, c.prefix+"*", 200).Iterator()
	now := time.Now()
	for iter.Next(ctx) {
		fullKey := iter.Val()
		raw, err := c.rdb.Get(ctx, fullKey).Bytes()
		if err != nil {
			continue
		}
		var p persistedFare
		if err := json.Unmarshal(raw, &p); err != nil {
			if c.rdb.Del(ctx, fullKey).Err() == nil {
				removed++
			}
			continue
		}
		entry := p.toEntry(fullKey)
		if entry.invalid() || entry.Expired(now, c.ttl) {
			if c.rdb.Del(ctx, fullKey).Err() == nil {
				removed++
			}
		}
	}
	if err := iter.Err(); err != nil && c.logger != nil {
		c.logger.Warn("cache sweep error", "backend", "redis", "err", err)
	}
	return removed
}
