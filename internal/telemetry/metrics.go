// Package telemetry exposes Prometheus metrics for the mutation engine.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Mutation outcome labels.
const (
	OutcomeSuccess         = "success"
	OutcomeValidationError = "validation_error"
	OutcomeInfraError      = "infrastructure_error"
	OutcomeAuthError       = "auth_error"
)

type Metrics struct {
	MutationsTotal   *prometheus.CounterVec
	MutationDuration *prometheus.HistogramVec
}

// New registers the mutation metrics with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		MutationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_mutations_total",
			Help: "Total number of mutation invocations by outcome",
		}, []string{"mutation", "outcome"}),
		MutationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tracker_mutation_duration_seconds",
			Help:    "Mutation latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"mutation"}),
	}
}

// ObserveMutation records one mutation invocation.
func (m *Metrics) ObserveMutation(mutation, outcome string, elapsed time.Duration) {
	m.MutationsTotal.WithLabelValues(mutation, outcome).Inc()
	m.MutationDuration.WithLabelValues(mutation).Observe(elapsed.Seconds())
}
