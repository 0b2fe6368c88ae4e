// Package metrics exposes the Bridge's internal counters as Prometheus
// collectors, following the package-level var + init()-time MustRegister
// shape used by cuemby-warren/pkg/metrics. No HTTP handler is wired here:
// the serving surface (including any metrics endpoint) is
// out of scope as an external collaborator — only the collector/registry
// half belongs to this module.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ActiveVersion = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_active_version",
		Help: "Current monotonic Bridge mutation version",
	})

	HotCacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_hot_cache_entries",
		Help: "Current number of entries held in the hot anchor cache",
	})

	HotCacheEvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_hot_cache_evictions_total",
		Help: "Total number of batch eviction events in the hot anchor cache",
	})

	HotCacheEvictedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_hot_cache_evicted_total",
		Help: "Total number of entries dropped by hot cache eviction",
	})

	TierHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_anchor_tier_hits_total",
		Help: "Total anchor lookups satisfied by each storage tier",
	}, []string{"tier"})

	RefreshDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bridge_refresh_duration_seconds",
		Help:    "Duration of a hot-cache refresh-from-warm-storage cycle",
		Buckets: prometheus.DefBuckets,
	})

	RefreshFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_refresh_failures_total",
		Help: "Total number of refresh cycles that failed to load from warm storage",
	})
)

func init() {
	prometheus.MustRegister(ActiveVersion)
	prometheus.MustRegister(HotCacheEntries)
	prometheus.MustRegister(HotCacheEvictionsTotal)
	prometheus.MustRegister(HotCacheEvictedTotal)
	prometheus.MustRegister(TierHitsTotal)
	prometheus.MustRegister(RefreshDuration)
	prometheus.MustRegister(RefreshFailuresTotal)
}
