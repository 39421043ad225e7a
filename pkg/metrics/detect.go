package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// nightwatch_reports_total{rule}
	ReportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nightwatch_reports_total",
			Help: "Total anomaly reports emitted, labeled by rule name.",
		},
		[]string{"rule"},
	)

	// nightwatch_dispatch_duration_seconds
	DispatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nightwatch_dispatch_duration_seconds",
			Help:    "Time spent evaluating all rules against a single event.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// nightwatch_store_errors_total{op}
	StoreErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nightwatch_store_errors_total",
			Help: "Total durable store operation failures, labeled by operation.",
		},
		[]string{"op"},
	)

	// nightwatch_event_queue_depth
	EventQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nightwatch_event_queue_depth",
			Help: "Current number of events buffered ahead of the dispatcher.",
		},
	)
)

func init() {
	prometheus.MustRegister(ReportsTotal, DispatchDuration, StoreErrors, EventQueueDepth)
}
