package metrics

import "github.com/kilianp07/vcmd/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	// PrometheusAddr enables the /metrics endpoint when non-empty.
	PrometheusAddr string                 `json:"prometheus_addr" yaml:"prometheus_addr"`
	Sinks          []factory.ModuleConfig `json:"sinks" yaml:"sinks"`
}
