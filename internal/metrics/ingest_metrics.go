package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters and histograms for the HTTP ingest/normalize/upstream path,
// following the naming and registration style of the rest of this package
// (promauto, a "relay_" prefix in place of "log_capturer_").
var (
	EventsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_events_ingested_total",
			Help: "Total number of events accepted by the store endpoint",
		},
		[]string{"project_id"},
	)

	EventsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_events_rejected_total",
			Help: "Total number of events rejected before normalization",
		},
		[]string{"project_id", "reason"},
	)

	NormalizeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_normalize_duration_seconds",
			Help:    "Time spent normalizing a single event",
			Buckets: prometheus.DefBuckets,
		},
	)

	UpstreamForwardDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_upstream_forward_duration_seconds",
			Help:    "Time spent forwarding a normalized event upstream",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"transport"},
	)

	UpstreamForwardErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_upstream_forward_errors_total",
			Help: "Total number of failed upstream forward attempts",
		},
		[]string{"transport"},
	)
)

// RecordEventIngested increments the accepted-event counter for projectID.
func RecordEventIngested(projectID string) {
	EventsIngestedTotal.WithLabelValues(projectID).Inc()
}

// RecordEventRejected increments the rejected-event counter for projectID,
// tagged with why it was rejected (e.g. "invalid_payload", "rate_limited").
func RecordEventRejected(projectID, reason string) {
	EventsRejectedTotal.WithLabelValues(projectID, reason).Inc()
}
