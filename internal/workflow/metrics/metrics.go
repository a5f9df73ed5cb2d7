package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the workflow module.
type Metrics struct {
	// Status transitions by edge and outcome
	Transitions *prometheus.CounterVec

	// Rejected transition attempts by reason class
	TransitionDenied *prometheus.CounterVec

	// Artifact registrations by kind
	ArtifactRegistrations *prometheus.CounterVec

	// Error correction tickets by terminal outcome
	ErrorRequestOutcomes *prometheus.CounterVec

	// Full transition latency including store round trips
	TransitionLatency prometheus.Histogram

	// Document cache effectiveness
	CacheLookups *prometheus.CounterVec
}

// New creates a new Metrics instance with all workflow metrics registered.
func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sevagate_workflow_transitions_total",
			Help: "Committed status transitions by source and target status",
		}, []string{"from", "to", "role"}),

		TransitionDenied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sevagate_workflow_transitions_denied_total",
			Help: "Refused transition attempts by error code",
		}, []string{"code"}),

		ArtifactRegistrations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sevagate_workflow_artifact_registrations_total",
			Help: "Receipt and certificate registrations by kind",
		}, []string{"kind"}),

		ErrorRequestOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sevagate_workflow_error_requests_total",
			Help: "Error correction tickets by lifecycle event",
		}, []string{"event"}),

		TransitionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sevagate_workflow_transition_duration_seconds",
			Help:    "Duration of a full transition including persistence",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sevagate_workflow_cache_lookups_total",
			Help: "Document cache lookups by result",
		}, []string{"result"}), // result: "hit", "miss", "bypass"
	}
}

// IncrementTransition records a committed status transition.
func (m *Metrics) IncrementTransition(from, to, role string) {
	if m != nil {
		m.Transitions.WithLabelValues(from, to, role).Inc()
	}
}

// IncrementDenied records a refused transition attempt.
func (m *Metrics) IncrementDenied(code string) {
	if m != nil {
		m.TransitionDenied.WithLabelValues(code).Inc()
	}
}

// IncrementArtifact records a receipt or certificate registration.
func (m *Metrics) IncrementArtifact(kind string) {
	if m != nil {
		m.ArtifactRegistrations.WithLabelValues(kind).Inc()
	}
}

// IncrementErrorRequest records an error ticket lifecycle event.
func (m *Metrics) IncrementErrorRequest(event string) {
	if m != nil {
		m.ErrorRequestOutcomes.WithLabelValues(event).Inc()
	}
}

// ObserveTransitionLatency records the duration of a transition.
func (m *Metrics) ObserveTransitionLatency(d time.Duration) {
	if m != nil {
		m.TransitionLatency.Observe(d.Seconds())
	}
}

// IncrementCacheLookup records a document cache lookup result.
func (m *Metrics) IncrementCacheLookup(result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(result).Inc()
	}
}
