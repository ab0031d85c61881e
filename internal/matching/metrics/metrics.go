// Package metrics instruments the matching context.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is nil-safe: a nil receiver drops every observation, so unit
// tests can pass nil without registering collectors.
type Metrics struct {
	evaluations    prometheus.Counter
	matchesCreated *prometheus.CounterVec
	scoreHist      prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		evaluations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "propbridge_match_evaluations_total",
			Help: "Requirement-property pairs evaluated by the scorer.",
		}),
		matchesCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "propbridge_matches_created_total",
			Help: "Matches created, by location class.",
		}, []string{"location_class"}),
		scoreHist: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "propbridge_match_score",
			Help:    "Overall score of created matches.",
			Buckets: prometheus.LinearBuckets(50, 5, 11),
		}),
	}
}

func (m *Metrics) Evaluated() {
	if m == nil {
		return
	}
	m.evaluations.Inc()
}

func (m *Metrics) MatchCreated(locationClass string, score float64) {
	if m == nil {
		return
	}
	m.matchesCreated.WithLabelValues(locationClass).Inc()
	m.scoreHist.Observe(score)
}
