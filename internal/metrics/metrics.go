// Package metrics exposes the pipeline's Prometheus metrics and the host
// resource snapshot served on /healthz, as promauto-registered package
// globals so handlers can observe without threading a registry around.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ProcessingStepDuration times each named step of the ingest pipeline
// (decode, normalize, serialize, forward), labeled by pipeline and step
// so a single histogram covers every stage.
var ProcessingStepDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "relay_processing_step_duration_seconds",
		Help:    "Time spent in each ingest pipeline step",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"pipeline", "step"},
)
