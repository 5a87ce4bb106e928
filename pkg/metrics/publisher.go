package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	PublishPublished  = "published"
	PublishRetry      = "retry"
	PublishDeadLetter = "dead_letter"
)

// PublisherMetrics records outbox relay outcomes.
type PublisherMetrics struct {
	events  *prometheus.CounterVec
	batches prometheus.Counter
}

// NewPublisherMetrics registers the relay metrics. A nil registerer yields no-ops.
func NewPublisherMetrics(reg prometheus.Registerer) *PublisherMetrics {
	if reg == nil {
		return &PublisherMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_total",
		Help: "Outbox rows handled by the publisher by event type and result.",
	}, []string{"event_type", "result"})
	batches := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_batches_total",
		Help: "Non-empty outbox batches claimed by the publisher.",
	})
	reg.MustRegister(events, batches)
	return &PublisherMetrics{events: events, batches: batches}
}

// ObserveEvent counts one handled outbox row.
func (m *PublisherMetrics) ObserveEvent(eventType, result string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
}

// ObserveBatch counts one claimed batch.
func (m *PublisherMetrics) ObserveBatch() {
	if m == nil || m.batches == nil {
		return
	}
	m.batches.Inc()
}
