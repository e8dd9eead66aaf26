package triggers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/vcmd/core/events"
	"github.com/kilianp07/vcmd/core/logger"
	"github.com/kilianp07/vcmd/core/model"
	"github.com/kilianp07/vcmd/internal/eventbus"
)

type dispatchFunc func(ctx context.Context, cmd model.Command) model.Outcome

func (f dispatchFunc) Dispatch(ctx context.Context, cmd model.Command) model.Outcome {
	return f(ctx, cmd)
}

type recordLogger struct {
	logger.NopLogger
	mu    sync.Mutex
	debug []string
}

func (r *recordLogger) Debugf(format string, args ...any) {
	r.mu.Lock()
	r.debug = append(r.debug, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

func (r *recordLogger) lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.debug...)
}

func TestNewMonitorValidates(t *testing.T) {
	_, err := NewMonitor(nil, time.Second)
	assert.Error(t, err)
	_, err = NewMonitor(dispatchFunc(nil), 0)
	assert.Error(t, err)
}

func TestPollDecodesNotifications(t *testing.T) {
	bus := eventbus.New()
	defer bus.Close()
	sub := bus.Subscribe()
	var method string
	m, err := NewMonitor(dispatchFunc(func(_ context.Context, cmd model.Command) model.Outcome {
		method = cmd.Method
		return model.Success(map[string]any{
			"notifications": []any{
				map[string]any{"trigger_id": "t1", "field": "BatteryLevel", "value": 19.5, "fired_at": "2026-01-01T00:00:00Z"},
			},
		})
	}), time.Second, WithEventBus(bus))
	require.NoError(t, err)

	got := m.Poll(context.Background())
	assert.Equal(t, PollMethod, method)
	require.Len(t, got, 1)
	assert.Equal(t, "t1", got[0].TriggerID)
	assert.Equal(t, 19.5, got[0].Value)

	ev := (<-sub).(events.TriggerEvent)
	assert.Len(t, ev.Notifications, 1)
	assert.Empty(t, ev.Err)
}

func TestPollEmptyResult(t *testing.T) {
	m, err := NewMonitor(dispatchFunc(func(context.Context, model.Command) model.Outcome {
		return model.Success(nil)
	}), time.Second)
	require.NoError(t, err)
	assert.Empty(t, m.Poll(context.Background()))
}

func TestPollFailureLogging(t *testing.T) {
	cases := []struct {
		name    string
		kind    model.Kind
		debug   bool
		wantLog bool
	}{
		{"no node suppressed", model.KindNoNodeConnected, false, false},
		{"no node with debug", model.KindNoNodeConnected, true, true},
		{"other failure", model.KindTransportError, false, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			log := &recordLogger{}
			bus := eventbus.New()
			defer bus.Close()
			sub := bus.Subscribe()
			m, err := NewMonitor(dispatchFunc(func(context.Context, model.Command) model.Outcome {
				return model.Failure(c.kind, "nope")
			}), time.Second, WithLogger(log), WithDebug(c.debug), WithEventBus(bus))
			require.NoError(t, err)

			assert.Nil(t, m.Poll(context.Background()))
			assert.Equal(t, c.wantLog, len(log.lines()) > 0)
			ev := (<-sub).(events.TriggerEvent)
			assert.Equal(t, "nope", ev.Err)
		})
	}
}

func TestStartPollsImmediatelyAndStops(t *testing.T) {
	var calls atomic.Int32
	m, err := NewMonitor(dispatchFunc(func(context.Context, model.Command) model.Outcome {
		calls.Add(1)
		return model.Success(nil)
	}), 10*time.Millisecond)
	require.NoError(t, err)

	m.Start(context.Background())
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	m.Stop()
	n := calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, calls.Load())
	m.Stop()
}

func TestOverlappingPollsSkipped(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	m, err := NewMonitor(dispatchFunc(func(ctx context.Context, _ model.Command) model.Outcome {
		calls.Add(1)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return model.Success(nil)
	}), 5*time.Millisecond)
	require.NoError(t, err)

	m.Start(context.Background())
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	close(release)
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	m.Stop()
}
