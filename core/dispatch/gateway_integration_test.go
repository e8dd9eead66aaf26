package dispatch_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/vcmd/config"
	"github.com/kilianp07/vcmd/core/dispatch"
	"github.com/kilianp07/vcmd/core/model"
	"github.com/kilianp07/vcmd/core/nodes"
	"github.com/kilianp07/vcmd/infra/gateway"
	"github.com/kilianp07/vcmd/infra/logger"
)

type fixedConn config.Connection

func (c fixedConn) Resolve() config.Connection { return config.Connection(c) }

type countingFallback struct{ calls atomic.Int32 }

func (f *countingFallback) Available() bool      { return true }
func (f *countingFallback) Supports(string) bool { return true }
func (f *countingFallback) Invoke(context.Context, model.Command) (model.Outcome, error) {
	f.calls.Add(1)
	o := model.Success("ran on cli")
	o.Fallback = true
	return o, nil
}

// A command rejected by the vehicle must not be replayed, whatever the
// rejection message says.
func TestCommandErrorIsNotReplayed(t *testing.T) {
	var invokes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Action string `json:"action"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		if req.Action == "status" {
			_, _ = w.Write([]byte(`{"nodes":[{"id":"node-1","platform":"tesla","connected":true}]}`))
			return
		}
		invokes.Add(1)
		_, _ = w.Write([]byte(`{"ok":false,"error":{"type":"COMMAND_ERROR","message":"vehicle is offline or asleep"}}`))
	}))
	defer srv.Close()

	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	gateway.ResetMetrics(reg)
	nodes.ResetMetrics(reg)
	dispatch.ResetMetrics(reg)

	gw := gateway.NewClient(fixedConn{Host: host, Port: p}, gateway.WithLogger(logger.NopLogger{}))
	fb := &countingFallback{}
	d, err := dispatch.New(nodes.NewRegistry(gw, "tesla", logger.NopLogger{}), gw, fb,
		dispatch.WithLogger(logger.NopLogger{}))
	require.NoError(t, err)

	out := d.Dispatch(context.Background(), model.Command{Method: "door.unlock"})
	assert.Equal(t, model.StatusFailure, out.Status)
	assert.Equal(t, model.KindCommandFailed, out.Kind)
	assert.Equal(t, "vehicle is offline or asleep", out.Message)
	assert.EqualValues(t, 1, invokes.Load())
	assert.Zero(t, fb.calls.Load())
}
