package prometheus

import (
	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dittodav/pkg/metrics"
)

// RegisterBadgerMetrics exports the block and index cache statistics of db.
//
// The values are sampled from badger on every scrape, so nothing needs to
// poll the database. Returns false if metrics are not enabled or db is nil.
func RegisterBadgerMetrics(db *badger.DB) bool {
	if !metrics.IsEnabled() || db == nil {
		return false
	}

	reg := metrics.GetRegistry()
	caches := map[string]func() cacheStats{
		"block": func() cacheStats { return db.BlockCacheMetrics() },
		"index": func() cacheStats { return db.IndexCacheMetrics() },
	}

	for cacheType, sample := range caches {
		labels := prometheus.Labels{"cache_type": cacheType}

		promauto.With(reg).NewGaugeFunc(
			prometheus.GaugeOpts{
				Name:        "dittodav_badger_cache_hit_ratio",
				Help:        "BadgerDB cache hit ratio (0.0 to 1.0) by cache type",
				ConstLabels: labels,
			},
			func() float64 { return ratio(sample()) },
		)
		promauto.With(reg).NewCounterFunc(
			prometheus.CounterOpts{
				Name:        "dittodav_badger_cache_hits_total",
				Help:        "Total number of BadgerDB cache hits by cache type",
				ConstLabels: labels,
			},
			func() float64 { return float64(hits(sample())) },
		)
		promauto.With(reg).NewCounterFunc(
			prometheus.CounterOpts{
				Name:        "dittodav_badger_cache_misses_total",
				Help:        "Total number of BadgerDB cache misses by cache type",
				ConstLabels: labels,
			},
			func() float64 { return float64(misses(sample())) },
		)
	}
	return true
}

// cacheStats is the subset of ristretto's cache metrics badger exposes.
// Badger returns nil metrics for a disabled cache; ristretto's methods
// accept a nil receiver.
type cacheStats interface {
	Hits() uint64
	Misses() uint64
	Ratio() float64
}

func ratio(s cacheStats) float64 {
	if s == nil {
		return 0
	}
	return s.Ratio()
}

func hits(s cacheStats) uint64 {
	if s == nil {
		return 0
	}
	return s.Hits()
}

func misses(s cacheStats) uint64 {
	if s == nil {
		return 0
	}
	return s.Misses()
}
