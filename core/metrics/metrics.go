package metrics

import "time"

// DispatchRecord summarises one dispatch for observability purposes.
type DispatchRecord struct {
	DispatchID string
	Method     string
	NodeID     string
	Path       string
	Status     string
	Kind       string
	// Attempts counts gateway invocations, at most two.
	Attempts int
	Fallback bool
	Duration time.Duration
	Time     time.Time
}

// MetricsSink records dispatch outcomes.
type MetricsSink interface {
	RecordDispatch(rec DispatchRecord) error
}

// TriggerPollEvent captures one trigger poll cycle.
type TriggerPollEvent struct {
	Notifications int
	Err           string
	Time          time.Time
}

// TriggerPollRecorder is implemented by sinks able to record trigger polls.
type TriggerPollRecorder interface {
	RecordTriggerPoll(ev TriggerPollEvent) error
}

// NodeEventRecord captures a node registry transition.
type NodeEventRecord struct {
	Action   string
	NodeID   string
	Platform string
	Time     time.Time
}

// NodeEventRecorder is implemented by sinks able to record registry changes.
type NodeEventRecorder interface {
	RecordNodeEvent(ev NodeEventRecord) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordDispatch(DispatchRecord) error      { return nil }
func (NopSink) RecordTriggerPoll(TriggerPollEvent) error { return nil }
func (NopSink) RecordNodeEvent(NodeEventRecord) error    { return nil }

// MultiSink fans records out to several sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordDispatch forwards the record to all sinks, returning the first error
// encountered after every sink has been tried.
func (m *MultiSink) RecordDispatch(rec DispatchRecord) error {
	var first error
	for _, s := range m.Sinks {
		if err := s.RecordDispatch(rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// RecordTriggerPoll forwards to sinks implementing TriggerPollRecorder.
func (m *MultiSink) RecordTriggerPoll(ev TriggerPollEvent) error {
	var first error
	for _, s := range m.Sinks {
		if rec, ok := s.(TriggerPollRecorder); ok {
			if err := rec.RecordTriggerPoll(ev); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// RecordNodeEvent forwards to sinks implementing NodeEventRecorder.
func (m *MultiSink) RecordNodeEvent(ev NodeEventRecord) error {
	var first error
	for _, s := range m.Sinks {
		if rec, ok := s.(NodeEventRecorder); ok {
			if err := rec.RecordNodeEvent(ev); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
