package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks snapshot cache hits
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "b2chat_kpi_cache_hits_total",
			Help: "Total number of KPI snapshot cache hits",
		},
	)

	// CacheMisses tracks snapshot cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "b2chat_kpi_cache_misses_total",
			Help: "Total number of KPI snapshot cache misses",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "b2chat_kpi_cache_errors_total",
			Help: "Total number of KPI cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
