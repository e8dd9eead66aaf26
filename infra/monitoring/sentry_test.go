package monitoring

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/vcmd/config"
	"github.com/kilianp07/vcmd/core/model"
	coremon "github.com/kilianp07/vcmd/core/monitoring"
)

func TestNewSentryMonitorWithoutDSN(t *testing.T) {
	m, err := NewSentryMonitor(config.SentryConfig{})
	require.NoError(t, err)
	assert.IsType(t, coremon.NopMonitor{}, m)
}

func TestSentryMonitorCapturesTags(t *testing.T) {
	var (
		mu     sync.Mutex
		events []*sentry.Event
	)
	m, err := newSentryMonitor(config.SentryConfig{DSN: "https://public@example.com/1", Environment: "test"},
		func(e *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			mu.Lock()
			events = append(events, e)
			mu.Unlock()
			return nil
		})
	require.NoError(t, err)

	m.CaptureException(nil, nil)
	m.CaptureException(model.Errorf(model.KindWakeFailed, "vehicle is still asleep after wake"), map[string]string{"method": "door.lock"})
	m.Flush(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1)
	assert.Equal(t, "door.lock", events[0].Tags["method"])
	assert.Equal(t, "vcmd", events[0].Tags["service"])
	assert.Equal(t, "test", events[0].Environment)
}

func TestSentryMonitorRecoverRepanics(t *testing.T) {
	m, err := newSentryMonitor(config.SentryConfig{DSN: "https://public@example.com/1"},
		func(*sentry.Event, *sentry.EventHint) *sentry.Event { return nil })
	require.NoError(t, err)
	assert.PanicsWithError(t, "boom", func() {
		defer m.Recover()
		panic(errors.New("boom"))
	})
}

func TestSentryMonitorGroupsDispatchErrors(t *testing.T) {
	var (
		mu     sync.Mutex
		events []*sentry.Event
	)
	m, err := newSentryMonitor(config.SentryConfig{
		DSN:         "https://public@example.com/1",
		IgnoreKinds: []string{"StaleNode"},
	}, func(e *sentry.Event, _ *sentry.EventHint) *sentry.Event {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	m.CaptureException(model.Errorf(model.KindStaleNode, "node offline"), nil)
	m.CaptureException(model.Errorf(model.KindTransportError, "gateway unreachable"), map[string]string{"method": "charge.start"})
	m.CaptureException(errors.New("broker gone"), map[string]string{"component": "mqtt"})
	m.Flush(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	assert.Equal(t, "TransportError", events[0].Tags["kind"])
	assert.Equal(t, []string{"dispatch", "TransportError", "charge.start"}, events[0].Fingerprint)
	assert.Empty(t, events[1].Tags["kind"])
	assert.Empty(t, events[1].Fingerprint)
}

func TestSentryConfigIgnored(t *testing.T) {
	cfg := config.SentryConfig{IgnoreKinds: []string{"WakeRequired"}}
	assert.True(t, cfg.Ignored("WakeRequired"))
	assert.False(t, cfg.Ignored("StaleNode"))
	assert.False(t, config.SentryConfig{}.Enabled())
}
