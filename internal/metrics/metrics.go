// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	lookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flower",
			Name:      "wiki_lookups_total",
			Help:      "Wikipedia lookups by outcome",
		},
		[]string{"outcome"},
	)

	lookupDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "flower",
			Name:      "wiki_lookup_duration_seconds",
			Help:      "Wikipedia lookup duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	classificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flower",
			Name:      "classifications_total",
			Help:      "Classifier calls by status",
		},
		[]string{"status"},
	)

	lookupCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flower",
			Name:      "lookup_cache_total",
			Help:      "Lookup cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

func init() {
	prometheus.MustRegister(lookupsTotal, lookupDuration, classificationsTotal, lookupCacheTotal)
}

// ObserveLookup records one finished lookup.
func ObserveLookup(outcome string, d time.Duration) {
	lookupsTotal.WithLabelValues(outcome).Inc()
	lookupDuration.Observe(d.Seconds())
}

// ObserveClassification records one classifier call.
func ObserveClassification(status string) {
	classificationsTotal.WithLabelValues(status).Inc()
}

// ObserveCache records a lookup cache hit or miss.
func ObserveCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	lookupCacheTotal.WithLabelValues(result).Inc()
}
