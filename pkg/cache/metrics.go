package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by layer (memory, redis)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beu_cache_hits_total",
			Help: "Total number of result cache hits",
		},
		[]string{"layer"},
	)

	// CacheMisses tracks lookups that missed every layer
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "beu_cache_misses_total",
			Help: "Total number of result cache misses",
		},
	)

	// CacheStores tracks entries written by layer
	CacheStores = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beu_cache_stores_total",
			Help: "Total number of result cache writes",
		},
		[]string{"layer"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beu_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
