package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for workflow transitions and outbox delivery.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Transition attempts by trigger and result label
	Transitions *prometheus.CounterVec

	// Transition latency including the storage transaction
	TransitionLatency *prometheus.HistogramVec

	// Outbox deliveries by result
	OutboxPublished *prometheus.CounterVec
}

// New registers all metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "proposal_transitions_total",
			Help: "Total workflow transitions by trigger and result",
		}, []string{"trigger", "result"}), // result: "success", "validation", "not_found", "illegal_state", "storage", "error"

		TransitionLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "proposal_transition_duration_seconds",
			Help:    "Duration of workflow transitions including persistence",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"trigger"}),

		OutboxPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "proposal_outbox_published_total",
			Help: "Total outbox delivery attempts by result",
		}, []string{"result"}),
	}
}

// ObserveTransition records one transition attempt.
func (m *Metrics) ObserveTransition(trigger, result string, elapsed time.Duration) {
	if m != nil {
		m.Transitions.WithLabelValues(trigger, result).Inc()
		m.TransitionLatency.WithLabelValues(trigger).Observe(elapsed.Seconds())
	}
}

// ObserveOutboxPublish records one outbox delivery attempt.
func (m *Metrics) ObserveOutboxPublish(result string) {
	if m != nil {
		m.OutboxPublished.WithLabelValues(result).Inc()
	}
}
