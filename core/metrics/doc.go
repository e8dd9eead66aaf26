// Package metrics defines the sinks that record dispatch outcomes. Concrete
// Prometheus and InfluxDB sinks live in infra/metrics and register
// themselves with the factory under "prometheus" and "influx"; "nop" is
// always available. Several configured sinks are combined in a MultiSink.
package metrics
