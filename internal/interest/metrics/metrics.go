// Package metrics instruments the interest context.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is nil-safe: a nil receiver drops every observation.
type Metrics struct {
	expressed   *prometheus.CounterVec
	transitions *prometheus.CounterVec
	reveals     prometheus.Counter
	staleWrites prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		expressed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "propbridge_interests_expressed_total",
			Help: "Interest expressions registered, by type and priority.",
		}, []string{"type", "priority"}),
		transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "propbridge_mediation_transitions_total",
			Help: "Mediation state transitions, by event.",
		}, []string{"event"}),
		reveals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "propbridge_contact_reveals_total",
			Help: "Connection approvals that disclosed contact details.",
		}),
		staleWrites: promauto.NewCounter(prometheus.CounterOpts{
			Name: "propbridge_interest_stale_writes_total",
			Help: "Mediation updates lost to concurrent writers.",
		}),
	}
}

func (m *Metrics) Expressed(interestType, priority string) {
	if m == nil {
		return
	}
	m.expressed.WithLabelValues(interestType, priority).Inc()
}

func (m *Metrics) Transition(event string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(event).Inc()
}

func (m *Metrics) ContactRevealed() {
	if m == nil {
		return
	}
	m.reveals.Inc()
}

func (m *Metrics) StaleWrite() {
	if m == nil {
		return
	}
	m.staleWrites.Inc()
}
