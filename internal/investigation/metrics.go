package investigation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	webSearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "almanac",
			Name:      "investigation_searches_total",
			Help:      "Total web searches issued by investigations",
		},
		[]string{"kind", "status"}, // kind: "topic", "question"
	)

	investigationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "almanac",
			Name:      "investigation_duration_seconds",
			Help:      "Duration of a full investigation fan-out in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
		},
	)

	investigationSourcesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "almanac",
			Name:      "investigation_sources_total",
			Help:      "Deduplicated sources found by investigations",
		},
		[]string{"reliability"},
	)
)
