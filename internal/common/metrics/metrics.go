// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_turns_started_total",
			Help: "Total number of inbound turns accepted",
		},
	)

	TurnsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_turns_completed_total",
			Help: "Total number of turns delivered end to end",
		},
	)

	TurnsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_turns_failed_total",
			Help: "Total number of turns aborted, by pipeline stage",
		},
		[]string{"stage", "error_code"},
	)

	TurnsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bridge_turns_active",
			Help: "Number of turns currently in flight",
		},
	)

	TurnsOverlapping = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_turns_overlapping_total",
			Help: "Turns accepted while another turn for the same user was in flight",
		},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_upstream_request_duration_seconds",
			Help:    "Duration of model service calls in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"outcome"},
	)

	UpstreamRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_upstream_retries_total",
			Help: "Retries issued after a stale conversation handle rejection",
		},
	)

	SegmentsDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_segments_delivered_total",
			Help: "Answer segments pushed to the downstream platform",
		},
	)

	DeliveryFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_delivery_failures_total",
			Help: "Segment pushes that failed and aborted the remainder of a turn",
		},
	)
)
