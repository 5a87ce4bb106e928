package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeConflict = "conflict"
	OutcomePartial  = "partial"
	OutcomeError    = "error"
	OutcomeSkipped  = "skipped"
)

// DomainMetrics records lifecycle and orchestration outcomes.
type DomainMetrics struct {
	transitions    *prometheus.CounterVec
	batchOps       *prometheus.CounterVec
	batchDuration  *prometheus.HistogramVec
	codesAllocated prometheus.Counter
}

// NewDomainMetrics registers the domain metrics on the provided registerer.
// A nil registerer yields a recorder whose methods are no-ops.
func NewDomainMetrics(reg prometheus.Registerer) *DomainMetrics {
	if reg == nil {
		return &DomainMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cycle_transitions_total",
		Help: "Cycle transition attempts by action and outcome.",
	}, []string{"action", "outcome"})
	batchOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pickup_batch_operations_total",
		Help: "Pickup batch operations by op and outcome.",
	}, []string{"op", "outcome"})
	batchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pickup_batch_operation_duration_seconds",
		Help:    "Duration of pickup batch operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	codesAllocated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "asset_codes_allocated_total",
		Help: "Asset codes issued by the ledger.",
	})
	reg.MustRegister(transitions, batchOps, batchDuration, codesAllocated)
	return &DomainMetrics{
		transitions:    transitions,
		batchOps:       batchOps,
		batchDuration:  batchDuration,
		codesAllocated: codesAllocated,
	}
}

// ObserveTransition counts one cycle transition attempt.
func (m *DomainMetrics) ObserveTransition(action, outcome string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(action), normalizeLabel(outcome)).Inc()
}

// ObserveBatchOp counts one batch operation and records its duration.
func (m *DomainMetrics) ObserveBatchOp(op, outcome string, duration time.Duration) {
	if m == nil || m.batchOps == nil {
		return
	}
	op = normalizeLabel(op)
	m.batchOps.WithLabelValues(op, normalizeLabel(outcome)).Inc()
	m.batchDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// AddCodesAllocated increments the issued code counter.
func (m *DomainMetrics) AddCodesAllocated(n int) {
	if m == nil || m.codesAllocated == nil || n <= 0 {
		return
	}
	m.codesAllocated.Add(float64(n))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
