package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/vcmd/core/metrics"
)

// PromSink records per-method dispatch outcomes and trigger polls in
// Prometheus metrics.
type PromSink struct {
	outcomes      *prometheus.CounterVec
	attempts      prometheus.Histogram
	polls         *prometheus.CounterVec
	notifications prometheus.Counter
	nodes         *prometheus.CounterVec
}

// NewPromSink registers the sink metrics on the default Prometheus registerer.
// The HTTP endpoint is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	outcomes, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vcmd_command_outcomes_total",
		Help: "Dispatch outcomes per method, status and fallback provenance",
	}, []string{"method", "status", "fallback"}))
	if err != nil {
		return nil, err
	}
	attempts, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "vcmd_gateway_attempts",
		Help:    "Gateway invocations per dispatch",
		Buckets: []float64{0, 1, 2},
	}))
	if err != nil {
		return nil, err
	}
	polls, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vcmd_trigger_polls_total",
		Help: "Trigger polls by result",
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}
	notes, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vcmd_trigger_notifications_total",
		Help: "Trigger notifications received",
	}))
	if err != nil {
		return nil, err
	}
	nodes, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vcmd_node_events_total",
		Help: "Node registry transitions by action",
	}, []string{"action"}))
	if err != nil {
		return nil, err
	}
	return &PromSink{outcomes: outcomes, attempts: attempts, polls: polls, notifications: notes, nodes: nodes}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordDispatch counts the outcome and the gateway attempts.
func (s *PromSink) RecordDispatch(r coremetrics.DispatchRecord) error {
	s.outcomes.WithLabelValues(r.Method, r.Status, strconv.FormatBool(r.Fallback)).Inc()
	s.attempts.Observe(float64(r.Attempts))
	return nil
}

// RecordTriggerPoll counts the poll and its notifications.
func (s *PromSink) RecordTriggerPoll(ev coremetrics.TriggerPollEvent) error {
	result := "ok"
	if ev.Err != "" {
		result = "error"
	}
	s.polls.WithLabelValues(result).Inc()
	s.notifications.Add(float64(ev.Notifications))
	return nil
}

// RecordNodeEvent counts registry transitions.
func (s *PromSink) RecordNodeEvent(ev coremetrics.NodeEventRecord) error {
	s.nodes.WithLabelValues(ev.Action).Inc()
	return nil
}
