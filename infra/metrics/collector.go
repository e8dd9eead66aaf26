package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/vcmd/core/events"
	coremetrics "github.com/kilianp07/vcmd/core/metrics"
	"github.com/kilianp07/vcmd/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records trigger polls
// and node registry events on sink. Dispatches are recorded by the dispatcher
// itself. It stops when the context is canceled or the bus is closed.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	eventbus.Listen(ctx, bus, func(ev eventbus.Event) { record(sink, ev) })
}

func record(sink coremetrics.MetricsSink, ev eventbus.Event) {
	switch e := ev.(type) {
	case events.TriggerEvent:
		if r, ok := sink.(coremetrics.TriggerPollRecorder); ok {
			_ = r.RecordTriggerPoll(coremetrics.TriggerPollEvent{
				Notifications: len(e.Notifications),
				Err:           e.Err,
				Time:          e.Time,
			})
		}
	case events.NodeEvent:
		if r, ok := sink.(coremetrics.NodeEventRecorder); ok {
			_ = r.RecordNodeEvent(coremetrics.NodeEventRecord{
				Action:   string(e.Action),
				NodeID:   e.NodeID,
				Platform: e.Platform,
				Time:     time.Now(),
			})
		}
	}
}
