// Package metrics holds the Prometheus collectors exported by nb4mna.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// CacheLookups counts cache lookups by outcome ("hit" or "miss").
	CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nb4mna_cache_lookups_total",
		Help: "Total number of response cache lookups",
	}, []string{"cache", "result"})
	// CacheStores counts upstream responses by storage decision ("stored" or "skipped").
	CacheStores = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nb4mna_cache_stores_total",
		Help: "Total number of upstream responses considered for caching",
	}, []string{"cache", "outcome"})
	// CacheEvictions counts entries removed by the sweeper.
	CacheEvictions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nb4mna_cache_evictions_total",
		Help: "Total number of expired entries removed from the response cache",
	}, []string{"cache"})
	// CacheEntries reports the number of live entries.
	CacheEntries = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nb4mna_cache_entries",
		Help: "Current number of entries held by the response cache",
	}, []string{"cache"})
)

const (
	ResultHit      = "hit"
	ResultMiss     = "miss"
	OutcomeStored  = "stored"
	OutcomeSkipped = "skipped"
)

// NewRegistry creates a new Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// RegisterCacheMetrics registers the response cache collectors on the provided registry.
func RegisterCacheMetrics(reg prometheus.Registerer) {
	reg.MustRegister(CacheLookups, CacheStores, CacheEvictions, CacheEntries)
}
