package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/vcmd/core/events"
	"github.com/kilianp07/vcmd/core/factory"
	coremetrics "github.com/kilianp07/vcmd/core/metrics"
	"github.com/kilianp07/vcmd/internal/eventbus"
)

func TestPromSinkRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordDispatch(coremetrics.DispatchRecord{Method: "door.lock", Status: "success", Attempts: 1}))
	require.NoError(t, sink.RecordDispatch(coremetrics.DispatchRecord{Method: "door.lock", Status: "success", Fallback: true}))
	require.NoError(t, sink.RecordTriggerPoll(coremetrics.TriggerPollEvent{Notifications: 2}))
	require.NoError(t, sink.RecordTriggerPoll(coremetrics.TriggerPollEvent{Err: "no node"}))
	require.NoError(t, sink.RecordNodeEvent(coremetrics.NodeEventRecord{Action: "invalidated"}))

	assert.Equal(t, 1.0, testutil.ToFloat64(sink.outcomes.WithLabelValues("door.lock", "success", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.outcomes.WithLabelValues("door.lock", "success", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.polls.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.polls.WithLabelValues("error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.notifications))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.nodes.WithLabelValues("invalidated")))
	assert.Equal(t, 1, testutil.CollectAndCount(sink.attempts))
}

func TestPromSinkReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	b, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	require.NoError(t, a.RecordNodeEvent(coremetrics.NodeEventRecord{Action: "resolved"}))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.nodes.WithLabelValues("resolved")))
}

func TestFactoryBuildsRegisteredSinks(t *testing.T) {
	assert.Subset(t, coremetrics.SinkTypes(), []string{"nop", "prometheus", "influx"})

	s, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}})
	require.NoError(t, err)
	assert.IsType(t, coremetrics.NopSink{}, s)

	// An unreachable influx endpoint degrades to NopSink.
	s, err = coremetrics.NewMetricsSink([]factory.ModuleConfig{
		{Type: "nop"},
		{Type: "influx", Conf: map[string]any{"url": "http://127.0.0.1:1", "org": "o", "bucket": "b"}},
	})
	require.NoError(t, err)
	multi, ok := s.(*coremetrics.MultiSink)
	require.True(t, ok)
	assert.Len(t, multi.Sinks, 2)
	assert.IsType(t, coremetrics.NopSink{}, multi.Sinks[1])
}

func TestEventCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	bus := eventbus.New()
	defer bus.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartEventCollector(ctx, bus, sink)
	// Subscription happens synchronously, so publishing right away is safe.
	bus.Publish(events.TriggerEvent{Notifications: []events.TriggerNotification{{TriggerID: "t1"}}, Time: time.Now()})
	bus.Publish(events.NodeEvent{Action: events.NodeResolved, NodeID: "n1", Platform: "tesla"})

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(sink.notifications) == 1 &&
			testutil.ToFloat64(sink.nodes.WithLabelValues("resolved")) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestHandlerServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	require.NoError(t, sink.RecordDispatch(coremetrics.DispatchRecord{Method: "honk_horn", Status: "failure"}))

	srv := httptest.NewServer(Handler(reg, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.True(t, strings.Contains(string(body), `vcmd_command_outcomes_total{fallback="false",method="honk_horn",status="failure"} 1`))

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStartPromServerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- StartPromServer(ctx, "127.0.0.1:0", nil) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestHandlerMountsExtraRoutes(t *testing.T) {
	srv := httptest.NewServer(Handler(prometheus.NewRegistry(), map[string]http.Handler{
		"/api/ping": http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "pong")
		}),
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/ping")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "pong", string(body))
}
