// Package triggers polls the vehicle node for fired trigger notifications.
package triggers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/kilianp07/vcmd/core/events"
	"github.com/kilianp07/vcmd/core/logger"
	"github.com/kilianp07/vcmd/core/model"
	coremon "github.com/kilianp07/vcmd/core/monitoring"
	"github.com/kilianp07/vcmd/internal/eventbus"
)

// PollMethod is the node command that drains pending notifications.
const PollMethod = "trigger.poll"

// Dispatcher executes one vehicle command.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd model.Command) model.Outcome
}

type pollResult struct {
	Notifications []events.TriggerNotification `json:"notifications"`
}

// Monitor polls PollMethod on a fixed interval. A poll still running when
// the next tick fires causes that tick to be skipped.
type Monitor struct {
	dispatcher Dispatcher
	interval   time.Duration
	bus        eventbus.EventBus
	log        logger.Logger
	debug      bool

	polling atomic.Bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	mu      sync.Mutex
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithEventBus publishes one events.TriggerEvent per completed poll.
func WithEventBus(bus eventbus.EventBus) Option { return func(m *Monitor) { m.bus = bus } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(m *Monitor) { m.log = l } }

// WithDebug also logs polls that failed because no node is connected.
func WithDebug(debug bool) Option { return func(m *Monitor) { m.debug = debug } }

// NewMonitor creates a monitor polling every interval.
func NewMonitor(d Dispatcher, interval time.Duration, opts ...Option) (*Monitor, error) {
	if d == nil {
		return nil, errors.New("triggers: dispatcher is required")
	}
	if interval <= 0 {
		return nil, errors.New("triggers: interval must be positive")
	}
	m := &Monitor{dispatcher: d, interval: interval, log: logger.NopLogger{}}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Start polls once immediately and then on every tick until ctx is done or
// Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.log.Infof("starting trigger monitor (interval: %s)", m.interval)
	m.wg.Add(1)
	go m.loop(ctx)
}

// Stop halts polling and waits for an in-flight poll to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	m.log.Infof("stopping trigger monitor")
	cancel()
	m.wg.Wait()
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()
	var inflight sync.WaitGroup
	defer inflight.Wait()
	tick := func() {
		if !m.polling.CompareAndSwap(false, true) {
			m.log.Debugf("previous trigger poll still running, skipping")
			return
		}
		inflight.Add(1)
		coremon.Go(func() {
			defer inflight.Done()
			defer m.polling.Store(false)
			m.Poll(ctx)
		})
	}
	tick()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			tick()
		case <-ctx.Done():
			return
		}
	}
}

// Poll runs one poll and returns the notifications it drained.
func (m *Monitor) Poll(ctx context.Context) []events.TriggerNotification {
	out := m.dispatcher.Dispatch(ctx, model.Command{Method: PollMethod})
	ev := events.TriggerEvent{Time: time.Now()}
	if !out.OK() {
		if m.debug || out.Kind != model.KindNoNodeConnected {
			m.log.Debugf("trigger poll failed: %s", out.Message)
		}
		ev.Err = out.Message
		m.publish(ev)
		return nil
	}
	var res pollResult
	if err := decode(out.Value, &res); err != nil {
		m.log.Warnf("decode trigger poll: %v", err)
		ev.Err = err.Error()
		m.publish(ev)
		return nil
	}
	if len(res.Notifications) > 0 {
		m.log.Infow("received trigger notifications", map[string]any{
			"count":         len(res.Notifications),
			"notifications": res.Notifications,
		})
	}
	ev.Notifications = res.Notifications
	m.publish(ev)
	return res.Notifications
}

func (m *Monitor) publish(ev events.TriggerEvent) {
	if m.bus != nil {
		m.bus.Publish(ev)
	}
}

func decode(v any, out *pollResult) error {
	if v == nil {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(v)
}
