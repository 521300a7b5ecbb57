package skyodyssey

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the fetch chain and the
// search engine. All record methods are nil-safe so instrumentation can be
// disabled by simply not configuring a collector.
type MetricsCollector struct {
	fetchesTotal  *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	cacheSize   prometheus.Gauge

	dedupHits *prometheus.CounterVec

	retriesTotal *prometheus.CounterVec

	prunesTotal *prometheus.CounterVec

	permitLimit   *prometheus.GaugeVec
	permitsInUse  *prometheus.GaugeVec
	sweepsRemoved prometheus.Counter
}

// NewMetricsCollector creates a collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using the supplied
// registerer; tests pass a private registry.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	return &MetricsCollector{
		fetchesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "skyodyssey_fetches_total",
				Help: "Total number of leg fetches by stage and outcome",
			},
			[]string{"stage", "outcome"},
		),
		fetchDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "skyodyssey_fetch_duration_seconds",
				Help:    "Duration of resolved leg fetches in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		cacheHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "skyodyssey_cache_hits_total",
				Help: "Total number of fare cache hits",
			},
			[]string{"stage"},
		),
		cacheMisses: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "skyodyssey_cache_misses_total",
				Help: "Total number of fare cache misses",
			},
			[]string{"stage"},
		),
		cacheSize: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "skyodyssey_cache_size",
				Help: "Current number of entries in the fare cache",
			},
		),
		dedupHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "skyodyssey_deduplication_hits_total",
				Help: "Total number of fetches coalesced onto an in-flight request",
			},
			[]string{"stage"},
		),
		retriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "skyodyssey_retries_total",
				Help: "Total number of retry attempts against the fare provider",
			},
			[]string{"stage"},
		),
		prunesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "skyodyssey_prunes_total",
				Help: "Total number of search branches pruned, by stage and reason",
			},
			[]string{"stage", "reason"},
		),
		permitLimit: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "skyodyssey_permit_limit",
				Help: "Current adaptive permit limit per pool",
			},
			[]string{"pool"},
		),
		permitsInUse: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "skyodyssey_permits_in_use",
				Help: "Permits currently held per pool",
			},
			[]string{"pool"},
		),
		sweepsRemoved: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "skyodyssey_sweep_removed_total",
				Help: "Total cache entries removed by sweeps",
			},
		),
	}
}

// RecordFetch records a resolved fetch with its duration.
func (mc *MetricsCollector) RecordFetch(stage string, status OutcomeStatus, duration time.Duration) {
	if mc == nil {
		return
	}
	mc.fetchesTotal.WithLabelValues(stage, status.String()).Inc()
	mc.fetchDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordCacheHit records a cache hit.
func (mc *MetricsCollector) RecordCacheHit(stage string) {
	if mc == nil {
		return
	}
	mc.cacheHits.WithLabelValues(stage).Inc()
}

// RecordCacheMiss records a cache miss.
func (mc *MetricsCollector) RecordCacheMiss(stage string) {
	if mc == nil {
		return
	}
	mc.cacheMisses.WithLabelValues(stage).Inc()
}

// RecordCacheSize updates the cache-size gauge.
func (mc *MetricsCollector) RecordCacheSize(n int) {
	if mc == nil {
		return
	}
	mc.cacheSize.Set(float64(n))
}

// RecordDedupHit records a fetch coalesced onto an in-flight one.
func (mc *MetricsCollector) RecordDedupHit(stage string) {
	if mc == nil {
		return
	}
	mc.dedupHits.WithLabelValues(stage).Inc()
}

// RecordRetries records retry attempts beyond the first try.
func (mc *MetricsCollector) RecordRetries(stage string, attempts int) {
	if mc == nil || attempts <= 1 {
		return
	}
	mc.retriesTotal.WithLabelValues(stage).Add(float64(attempts - 1))
}

// RecordPrune records one pruned search branch.
func (mc *MetricsCollector) RecordPrune(stage, reason string) {
	if mc == nil {
		return
	}
	mc.prunesTotal.WithLabelValues(stage, reason).Inc()
}

// RecordPermits updates the permit gauges for a pool.
func (mc *MetricsCollector) RecordPermits(pool string, limit, inUse int) {
	if mc == nil {
		return
	}
	mc.permitLimit.WithLabelValues(pool).Set(float64(limit))
	mc.permitsInUse.WithLabelValues(pool).Set(float64(inUse))
}

// RecordSweep records entries removed by a cache sweep.
func (mc *MetricsCollector) RecordSweep(removed int) {
	if mc == nil {
		return
	}
	mc.sweepsRemoved.Add(float64(removed))
}
