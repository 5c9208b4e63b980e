package retrieval

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	retrievalQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "almanac",
			Name:      "retrieval_queries_total",
			Help:      "Total knowledge base retrievals",
		},
		[]string{"status"}, // "ok", "empty", "degraded", "skipped"
	)

	retrievalDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "almanac",
			Name:      "retrieval_duration_seconds",
			Help:      "Duration of embed plus search in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	retrievalResultsCount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "almanac",
			Name:      "retrieval_results_count",
			Help:      "Number of documents returned per retrieval",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 10, 15, 20},
		},
	)

	embeddingCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "almanac",
			Name:      "embedding_cache_total",
			Help:      "Query embedding cache lookups",
		},
		[]string{"result"}, // "hit", "miss", "error"
	)
)
