package billing

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes counters for webhook processing outcomes. Rejections are
// labeled by reason so security alerting can distinguish forged signatures
// from suspected replays and malformed payloads.
type Metrics struct {
	applied  prometheus.Counter
	rejected *prometheus.CounterVec
}

// NewMetrics creates and registers the processor's counters.
// Panics on duplicate registration, matching prometheus.MustRegister
// semantics; tests should pass a fresh registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		applied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "entitlekit",
			Subsystem: "webhook",
			Name:      "events_applied_total",
			Help:      "Webhook events durably applied to the entitlement store.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "entitlekit",
			Subsystem: "webhook",
			Name:      "events_rejected_total",
			Help:      "Webhook events rejected before application, by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.applied, m.rejected)
	return m
}

// RejectedCounter returns the counter tracking a single rejection reason.
// Exposed so alerting rules and tests can read individual series.
func (m *Metrics) RejectedCounter(reason RejectReason) prometheus.Counter {
	return m.rejected.WithLabelValues(string(reason))
}

func (m *Metrics) observeApplied() {
	if m != nil {
		m.applied.Inc()
	}
}

func (m *Metrics) observeRejected(reason RejectReason) {
	if m != nil {
		m.rejected.WithLabelValues(string(reason)).Inc()
	}
}
