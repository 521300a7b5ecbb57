package skyodyssey

import (
	"context"
	"time"
)

// fetcher composes the leg-fetch chain: cache → dedup → permit pool → retry
// policy → provider. Cache hits short-circuit the chain; every resolved fare
// (or NoFare) is written back through the cache. One fetcher serves a whole
// run; the pool varies per call site so destination sweeps and return-leg
// sweeps keep their own concurrency bounds.
type fetcher struct {
	provider FareProvider
	cache    CacheStore
	cacheTTL time.Duration
	inflight *InflightTable
	retry    *RetryPolicy
	metrics  *MetricsCollector
	logger   Logger
	debug    bool
}

func (f *fetcher) dlog(msg string, keysAndValues ...interface{}) {
	if f.debug && f.logger != nil {
		f.logger.Debug(msg, keysAndValues...)
	}
}

// fetchCheapest resolves the cheapest fare for q through the full chain.
// Failures are absorbed into the outcome; the caller only ever sees a tagged
// result. The stage label feeds metrics and debug traces.
func (f *fetcher) fetchCheapest(ctx context.Context, q LegQuery, pool *PermitPool, stage string) FetchOutcome {
	key := q.Key()

	if entry, ok := f.cache.Get(ctx, key); ok {
		f.metrics.RecordCacheHit(stage)
		if entry.NoFare {
			f.dlog("cache hit (no fare)", "stage", stage, "route", q.Origin+"->"+q.Destination)
			return FetchOutcome{Status: OutcomeNoFare, Cached: true}
		}
		f.dlog("cache hit", "stage", stage, "route", q.Origin+"->"+q.Destination, "price", entry.Fare.Price)
		return FetchOutcome{Status: OutcomeFound, Fare: entry.Fare, Cached: true}
	}
	f.metrics.RecordCacheMiss(stage)

	outcome, coalesced := f.inflight.Do(ctx, key, func() FetchOutcome {
		if err := pool.Acquire(ctx); err != nil {
			return FetchOutcome{Status: OutcomeFailed, Err: err}
		}
		defer pool.Release()
		f.metrics.RecordPermits(stage, pool.Limit(), pool.Inflight())

		start := time.Now()
		out := f.retry.Execute(ctx, q, f.provider.Lookup)
		latency := time.Since(start)

		pool.Observe(latency, out.Err)
		f.metrics.RecordFetch(stage, out.Status, latency)
		f.metrics.RecordRetries(stage, out.Attempts)
		f.metrics.RecordPermits(stage, pool.Limit(), pool.Inflight())

		switch out.Status {
		case OutcomeFound:
			f.cache.Set(ctx, key, &CacheEntry{Key: key, Fare: out.Fare, StoredAt: time.Now()}, f.cacheTTL)
			f.dlog("fetch ok", "stage", stage, "route", q.Origin+"->"+q.Destination, "price", out.Fare.Price, "attempts", out.Attempts)
		case OutcomeNoFare:
			if out.Err == nil {
				f.cache.Set(ctx, key, &CacheEntry{Key: key, NoFare: true, StoredAt: time.Now()}, f.cacheTTL)
				f.dlog("fetch empty", "stage", stage, "route", q.Origin+"->"+q.Destination)
			} else {
				// Invalid fare from the provider: purge any stale entry, never store.
				f.cache.Delete(ctx, key)
				f.dlog("fetch dropped invalid fare", "stage", stage, "route", q.Origin+"->"+q.Destination)
			}
		case OutcomeUnavailable:
			f.dlog("leg unavailable", "stage", stage, "route", q.Origin+"->"+q.Destination, "attempts", out.Attempts)
		default:
			f.dlog("fetch failed", "stage", stage, "route", q.Origin+"->"+q.Destination, "err", out.Err)
		}
		return out
	})

	if coalesced {
		f.metrics.RecordDedupHit(stage)
		f.dlog("coalesced onto in-flight fetch", "stage", stage, "route", q.Origin+"->"+q.Destination)
	}
	return outcome
}
