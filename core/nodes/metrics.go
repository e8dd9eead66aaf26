package nodes

import "github.com/prometheus/client_golang/prometheus"

var nodeLookups *prometheus.CounterVec

func newCollectors() *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vcmd_node_lookups_total",
			Help: "Node id resolutions by result (cached, found, missing, error)",
		},
		[]string{"result"},
	)
}

func init() {
	nodeLookups = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers registry metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(nodeLookups)
}

// ResetMetrics reinitializes the collectors for testing purposes and
// registers them on reg if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	nodeLookups = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
