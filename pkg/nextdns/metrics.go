package nextdns

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nxsync_api_requests_total",
			Help: "Requests sent to the profile API, by method and response status.",
		},
		[]string{"method", "status"},
	)
	apiLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nxsync_api_request_duration_seconds",
			Help:    "Profile API request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(apiRequests, apiLatency)
}

func observe(method string, status int, started time.Time) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	apiRequests.WithLabelValues(method, label).Inc()
	apiLatency.WithLabelValues(method).Observe(time.Since(started).Seconds())
}
