package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// nightwatch_alert_queue_depth
	AlertQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nightwatch_alert_queue_depth",
			Help: "Current number of reports buffered ahead of the webhook dispatcher.",
		},
	)

	// nightwatch_alert_dropped_total
	AlertDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nightwatch_alert_dropped_total",
			Help: "Total reports dropped because the alert queue was full.",
		},
	)

	// nightwatch_webhook_failures_total{channel}
	WebhookFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nightwatch_webhook_failures_total",
			Help: "Total webhook delivery failures, labeled by channel.",
		},
		[]string{"channel"},
	)
)

func init() {
	prometheus.MustRegister(AlertQueueDepth, AlertDropped, WebhookFailures)
}
