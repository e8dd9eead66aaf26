package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kilianp07/vcmd/core/events"
	coremqtt "github.com/kilianp07/vcmd/core/mqtt"
	"github.com/kilianp07/vcmd/infra/logger"
	"github.com/kilianp07/vcmd/internal/eventbus"
)

// Client mirrors the core mqtt.Client interface.
type Client = coremqtt.Client

const (
	dispatchSuffix = "dispatch"
	triggerSuffix  = "trigger"
)

type dispatchPayload struct {
	ID         string         `json:"id"`
	Method     string         `json:"method"`
	NodeID     string         `json:"node_id,omitempty"`
	Path       string         `json:"path"`
	Attempts   int            `json:"attempts"`
	Status     string         `json:"status"`
	Kind       string         `json:"kind,omitempty"`
	Message    string         `json:"message,omitempty"`
	Fallback   bool           `json:"fallback,omitempty"`
	DurationMS int64          `json:"duration_ms"`
	Timestamp  int64          `json:"timestamp"`
	Params     map[string]any `json:"params,omitempty"`
}

type triggerPayload struct {
	Notifications []events.TriggerNotification `json:"notifications"`
	Timestamp     int64                        `json:"timestamp"`
}

// OutcomePublisher forwards dispatch outcomes and fired triggers from the
// event bus to MQTT.
type OutcomePublisher struct {
	client Client
	logger logger.Logger
	done   <-chan struct{}
}

// NewOutcomePublisher wraps client.
func NewOutcomePublisher(client Client) *OutcomePublisher {
	return &OutcomePublisher{client: client, logger: logger.New("mqtt_publisher")}
}

// Start subscribes to bus and publishes until ctx is canceled or the bus is
// closed. Failed trigger polls are not forwarded.
func (p *OutcomePublisher) Start(ctx context.Context, bus eventbus.EventBus) {
	if bus == nil || p.client == nil {
		return
	}
	p.done = eventbus.Listen(ctx, bus, p.handle)
}

// Wait blocks until the forwarding goroutine exits. It returns at once if
// Start was never called.
func (p *OutcomePublisher) Wait() {
	if p.done != nil {
		<-p.done
	}
}

func (p *OutcomePublisher) handle(ev eventbus.Event) {
	var (
		suffix string
		body   any
	)
	switch e := ev.(type) {
	case events.DispatchEvent:
		suffix, body = dispatchSuffix, encodeDispatch(e)
	case events.TriggerEvent:
		if e.Err != "" || len(e.Notifications) == 0 {
			return
		}
		suffix = triggerSuffix
		body = triggerPayload{Notifications: e.Notifications, Timestamp: stamp(e.Time)}
	default:
		return
	}
	payload, err := json.Marshal(body)
	if err != nil {
		p.logger.Errorf("encode %s payload: %v", suffix, err)
		return
	}
	if err := p.client.Publish(suffix, payload); err != nil {
		p.logger.Warnf("publish %s: %v", suffix, err)
	}
}

func encodeDispatch(e events.DispatchEvent) dispatchPayload {
	out := dispatchPayload{
		ID:         e.ID,
		Method:     e.Command.Method,
		NodeID:     e.NodeID,
		Path:       string(e.Path),
		Attempts:   e.Attempts,
		Status:     e.Outcome.Status.String(),
		Message:    e.Outcome.Message,
		Fallback:   e.Outcome.Fallback,
		DurationMS: e.Duration.Milliseconds(),
		Timestamp:  stamp(e.Time),
		Params:     e.Command.Params,
	}
	if !e.Outcome.OK() {
		out.Kind = e.Outcome.Kind.String()
	}
	return out
}

func stamp(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UnixMilli()
}
