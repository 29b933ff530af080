// Package metrics provides Prometheus metrics for the build core: request
// tracker throughput, cache hit ratio, and bundler/packager throughput.
// Mirrors the teacher's internal/metrics package — a promauto-built
// singleton behind sync.Once — scoped down to what a build core emits.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	instance *Metrics
)

// Metrics holds every Prometheus collector the build core emits to.
type Metrics struct {
	// Request tracker
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	RequestsInFlight   prometheus.Gauge
	RequestCacheHits   *prometheus.CounterVec
	RequestCacheMisses *prometheus.CounterVec

	// Asset graph / transform pipeline
	AssetsTransformedTotal *prometheus.CounterVec
	PipelineReselections   prometheus.Counter

	// Bundler / packager
	BundlesEmittedTotal  *prometheus.CounterVec
	PackagedBundleBytes  *prometheus.HistogramVec
	HashReferencesTotal  prometheus.Counter

	// Cache
	CacheHitsTotal      *prometheus.CounterVec
	CacheMissesTotal    *prometheus.CounterVec
	CacheEvictionsTotal prometheus.Counter
	CacheEntries        prometheus.Gauge
}

// Get returns the process-wide Metrics singleton, registering collectors on
// first use.
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "corebuild_requests_total",
				Help: "Requests executed by the request tracker, by kind and outcome.",
			}, []string{"kind", "outcome"}),
			RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "corebuild_request_duration_seconds",
				Help:    "Duration of request tracker run_request calls, by kind.",
				Buckets: prometheus.DefBuckets,
			}, []string{"kind"}),
			RequestsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "corebuild_requests_in_flight",
				Help: "Requests currently executing on the worker pool.",
			}),
			RequestCacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "corebuild_request_memo_hits_total",
				Help: "Requests served from the tracker's in-memory memoization, by kind.",
			}, []string{"kind"}),
			RequestCacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "corebuild_request_memo_misses_total",
				Help: "Requests that re-ran because no valid memoized result existed, by kind.",
			}, []string{"kind"}),

			AssetsTransformedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "corebuild_assets_transformed_total",
				Help: "Assets that completed the transformer pipeline, by file type.",
			}, []string{"file_type"}),
			PipelineReselections: promauto.NewCounter(prometheus.CounterOpts{
				Name: "corebuild_pipeline_reselections_total",
				Help: "Times an asset's transform pipeline was re-selected after a file-type change.",
			}),

			BundlesEmittedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "corebuild_bundles_emitted_total",
				Help: "Bundles produced by the bundler, by bundle type.",
			}, []string{"bundle_type"}),
			PackagedBundleBytes: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "corebuild_packaged_bundle_bytes",
				Help:    "Size in bytes of packaged bundle content, by bundle type.",
				Buckets: prometheus.ExponentialBuckets(256, 4, 10),
			}, []string{"bundle_type"}),
			HashReferencesTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "corebuild_hash_references_total",
				Help: "Hash-reference placeholders substituted across all packaged bundles.",
			}),

			CacheHitsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "corebuild_cache_hits_total",
				Help: "Content-addressed cache hits, by tier.",
			}, []string{"tier"}),
			CacheMissesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "corebuild_cache_misses_total",
				Help: "Content-addressed cache misses, by tier.",
			}, []string{"tier"}),
			CacheEvictionsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "corebuild_cache_evictions_total",
				Help: "Entries removed from the cache by the LRU eviction tracker.",
			}),
			CacheEntries: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "corebuild_cache_entries",
				Help: "Current number of entries tracked by the cache eviction tracker.",
			}),
		}
	})
	return instance
}
