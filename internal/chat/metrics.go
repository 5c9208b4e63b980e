package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	turnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "almanac",
			Name:      "turns_total",
			Help:      "Total chat turns by task category and outcome",
		},
		[]string{"category", "status"},
	)

	classificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "almanac",
			Name:      "classifications_total",
			Help:      "Messages classified per task category",
		},
		[]string{"category"},
	)

	escalationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "almanac",
			Name:      "escalations_total",
			Help:      "Low-confidence escalations by outcome",
		},
		[]string{"category", "outcome"}, // "regenerated", "same_model", "failed"
	)

	modelCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "almanac",
			Name:      "model_calls_total",
			Help:      "Total model calls",
		},
		[]string{"model", "tier", "status"},
	)

	modelCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "almanac",
			Name:      "model_call_duration_seconds",
			Help:      "Duration of model calls in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~50s
		},
		[]string{"model"},
	)

	modelFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "almanac",
			Name:      "model_fallbacks_total",
			Help:      "Turns served by the fallback model after a provider failure",
		},
		[]string{"category"},
	)

	llmTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "almanac",
			Name:      "llm_tokens_total",
			Help:      "Estimated tokens sent to and received from models",
		},
		[]string{"model", "direction"},
	)

	captureUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "almanac",
			Name:      "capture_updates_total",
			Help:      "Conversation context updates extracted from model output",
		},
		[]string{"status"},
	)

	conversationsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "almanac",
			Name:      "conversations_active",
			Help:      "Number of chat turns currently in progress",
		},
	)
)
