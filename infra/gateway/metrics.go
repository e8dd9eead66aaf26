package gateway

import "github.com/prometheus/client_golang/prometheus"

var requestDuration *prometheus.HistogramVec

func newCollectors() *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vcmd_gateway_request_duration_seconds",
			Help:    "Latency of gateway tool calls by operation and result kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "result"},
	)
}

func init() {
	requestDuration = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers gateway metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(requestDuration)
}

// ResetMetrics reinitializes the collectors for testing purposes.
func ResetMetrics(reg prometheus.Registerer) {
	requestDuration = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
