package drafts

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pendingCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "almanac",
			Name:      "pending_entries_created_total",
			Help:      "Pending knowledge entries created",
		},
		[]string{"source_type"},
	)

	reviewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "almanac",
			Name:      "reviews_total",
			Help:      "Review actions on pending knowledge entries",
		},
		[]string{"action", "outcome"},
	)

	partialApprovalsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "almanac",
			Name:      "partial_approvals_total",
			Help:      "Approvals where the document was written but the pending entry was not resolved",
		},
	)

	documentEmbedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "almanac",
			Name:      "document_embed_total",
			Help:      "Embedding calls for approved documents",
		},
		[]string{"status"},
	)
)
