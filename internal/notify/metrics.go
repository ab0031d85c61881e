package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks dispatcher throughput and loss per notification kind.
type Metrics struct {
	enqueued *prometheus.CounterVec
	sent     *prometheus.CounterVec
	failed   *prometheus.CounterVec
	dropped  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		enqueued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "propbridge_notifications_enqueued_total",
			Help: "Notifications accepted into the dispatcher inbox",
		}, []string{"kind"}),
		sent: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "propbridge_notifications_sent_total",
			Help: "Notifications delivered by the sender",
		}, []string{"kind"}),
		failed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "propbridge_notifications_failed_total",
			Help: "Notification deliveries that errored",
		}, []string{"kind"}),
		dropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "propbridge_notifications_dropped_total",
			Help: "Notifications dropped because the inbox was full",
		}, []string{"kind"}),
	}
}

func (m *Metrics) RecordEnqueued(kind string) { m.enqueued.WithLabelValues(kind).Inc() }
func (m *Metrics) RecordSent(kind string)     { m.sent.WithLabelValues(kind).Inc() }
func (m *Metrics) RecordFailed(kind string)   { m.failed.WithLabelValues(kind).Inc() }
func (m *Metrics) RecordDropped(kind string)  { m.dropped.WithLabelValues(kind).Inc() }
