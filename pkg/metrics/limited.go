package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// nightwatch_admin_limited_total{route}
	AdminLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nightwatch_admin_limited_total",
			Help: "Total admin HTTP requests rejected by the self-protecting rate limiter.",
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(AdminLimited)
}
