// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueriesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_queries_processed_total",
			Help: "Total number of queries answered by the engine",
		},
		[]string{"query_type", "engine"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "engine_query_duration_seconds",
			Help: "Duration of query processing in seconds",
		},
		[]string{"query_type"},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_cache_hits_total",
			Help: "Total number of response cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_cache_misses_total",
			Help: "Total number of response cache misses",
		},
	)

	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_cache_evictions_total",
			Help: "Total number of LRU evictions from the response cache",
		},
	)

	FetchTasks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_fetch_tasks_total",
			Help: "Total number of fetch tasks executed",
		},
		[]string{"kind", "status"},
	)

	GeneratorCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_generator_calls_total",
			Help: "Total number of generator backend calls",
		},
		[]string{"model", "status"},
	)
)
