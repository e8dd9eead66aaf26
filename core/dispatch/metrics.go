package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	dispatchTotal    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	staleRetries     prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.HistogramVec, prometheus.Counter) {
	total := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vcmd_dispatch_total",
			Help: "Dispatches by terminal path, status and failure kind",
		},
		[]string{"path", "status", "kind"},
	)
	dur := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vcmd_dispatch_duration_seconds",
			Help:    "End to end dispatch latency by terminal path",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)
	stale := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vcmd_stale_node_retries_total",
			Help: "Gateway retries issued after a stale node was re-resolved",
		},
	)
	return total, dur, stale
}

func init() {
	dispatchTotal, dispatchDuration, staleRetries = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(dispatchTotal, dispatchDuration, staleRetries)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	dispatchTotal, dispatchDuration, staleRetries = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
