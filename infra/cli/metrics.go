package cli

import "github.com/prometheus/client_golang/prometheus"

var wakeTotal *prometheus.CounterVec

func newCollectors() *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vcmd_cli_wake_total",
			Help: "Wake gating decisions of the CLI fallback by result",
		},
		[]string{"result"},
	)
}

func init() {
	wakeTotal = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers fallback metrics on reg, or on the default
// registerer when reg is nil.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(wakeTotal)
}

// ResetMetrics reinitializes the collectors for testing purposes.
func ResetMetrics(reg prometheus.Registerer) {
	wakeTotal = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
