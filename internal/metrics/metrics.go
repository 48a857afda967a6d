package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChatRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concierge_chat_requests_total",
			Help: "Total number of chat requests by outcome",
		},
		[]string{"outcome"},
	)

	CompletionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "concierge_completion_duration_seconds",
			Help:    "Duration of completion endpoint calls in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60},
		},
		[]string{"outcome"},
	)

	Resolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concierge_resolutions_total",
			Help: "Resolved replies by grounding kind and resolution strategy",
		},
		[]string{"kind", "strategy"},
	)

	GroundingCandidates = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "concierge_grounding_candidates",
			Help:    "Number of candidates placed in the prompt",
			Buckets: []float64{0, 1, 5, 10, 20, 30},
		},
		[]string{"intent"},
	)
)
