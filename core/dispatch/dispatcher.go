// Package dispatch routes vehicle commands to the gateway node serving the
// platform, re-resolving a stale node once, and falls back to the local CLI
// when no node can take the command.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kilianp07/vcmd/core/dispatch/logging"
	"github.com/kilianp07/vcmd/core/events"
	"github.com/kilianp07/vcmd/core/logger"
	"github.com/kilianp07/vcmd/core/metrics"
	"github.com/kilianp07/vcmd/core/model"
	coremon "github.com/kilianp07/vcmd/core/monitoring"
	"github.com/kilianp07/vcmd/internal/eventbus"
)

// NodeResolver resolves and invalidates the cached gateway node id.
type NodeResolver interface {
	ResolveNodeID(ctx context.Context, forceRefresh bool) (string, bool)
	Invalidate()
}

// GatewayInvoker forwards a command to a node. Errors carry a model.Kind.
type GatewayInvoker interface {
	Invoke(ctx context.Context, nodeID string, cmd model.Command) (any, error)
}

// FallbackInvoker runs commands without the gateway.
type FallbackInvoker interface {
	Available() bool
	Supports(method string) bool
	Invoke(ctx context.Context, cmd model.Command) (model.Outcome, error)
}

const tracerName = "github.com/kilianp07/vcmd/core/dispatch"

// Dispatcher orchestrates the gateway and fallback paths. It is safe for
// concurrent use; every call runs its own retry sequence.
type Dispatcher struct {
	nodes    NodeResolver
	gateway  GatewayInvoker
	fallback FallbackInvoker
	platform string

	log    logger.Logger
	sink   metrics.MetricsSink
	bus    eventbus.EventBus
	store  logging.Store
	tracer trace.Tracer
	now    func() time.Time
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. The default discards output.
func WithLogger(l logger.Logger) Option { return func(d *Dispatcher) { d.log = l } }

// WithMetricsSink receives a DispatchRecord per dispatch.
func WithMetricsSink(s metrics.MetricsSink) Option { return func(d *Dispatcher) { d.sink = s } }

// WithEventBus publishes a DispatchEvent per dispatch on b.
func WithEventBus(b eventbus.EventBus) Option { return func(d *Dispatcher) { d.bus = b } }

// WithAuditStore appends a Record per dispatch. A nil store disables auditing.
func WithAuditStore(s logging.Store) Option { return func(d *Dispatcher) { d.store = s } }

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option { return func(d *Dispatcher) { d.tracer = t } }

// WithPlatform names the platform in failure messages.
func WithPlatform(p string) Option { return func(d *Dispatcher) { d.platform = p } }

// New creates a Dispatcher. fallback may be nil when no CLI path exists.
func New(nodes NodeResolver, gateway GatewayInvoker, fallback FallbackInvoker, opts ...Option) (*Dispatcher, error) {
	if nodes == nil || gateway == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to New")
	}
	d := &Dispatcher{
		nodes:    nodes,
		gateway:  gateway,
		fallback: fallback,
		platform: "vehicle",
		log:      logger.NopLogger{},
		sink:     metrics.NopSink{},
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// attempt tracks one dispatch through the state machine.
type attempt struct {
	nodeID   string
	path     model.Path
	attempts int
}

// Dispatch delivers cmd and returns its terminal outcome. The gateway is
// retried at most once, after a stale node was re-resolved. Only
// connectivity failures reach the CLI fallback; command failures are
// surfaced as they are.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd model.Command) model.Outcome {
	id := uuid.NewString()
	start := d.now()
	ctx, span := d.tracer.Start(ctx, "dispatch "+cmd.Method, trace.WithAttributes(
		attribute.String("vcmd.dispatch_id", id),
		attribute.String("vcmd.method", cmd.Method),
	))
	defer span.End()

	st := &attempt{path: model.PathNone}
	out := d.run(ctx, cmd, st)
	d.finish(ctx, span, id, cmd, st, out, d.now().Sub(start))
	return out
}

func (d *Dispatcher) run(ctx context.Context, cmd model.Command, st *attempt) model.Outcome {
	nodeID, ok := d.nodes.ResolveNodeID(ctx, false)
	if !ok {
		return d.useFallback(ctx, cmd, st, d.noNode())
	}

	v, err := d.invoke(ctx, nodeID, cmd, st)
	if err == nil {
		return model.Success(v)
	}
	if model.KindOf(err) != model.KindStaleNode {
		return model.FailureFromError(err)
	}

	staleRetries.Inc()
	d.log.Warnf("node %s is stale (%v), re-resolving", nodeID, err)
	d.nodes.Invalidate()
	nodeID, ok = d.nodes.ResolveNodeID(ctx, true)
	if !ok {
		return d.useFallback(ctx, cmd, st, d.noNode())
	}

	v, err = d.invoke(ctx, nodeID, cmd, st)
	if err == nil {
		return model.Success(v)
	}
	if model.KindOf(err) != model.KindStaleNode {
		return model.FailureFromError(err)
	}
	d.nodes.Invalidate()
	return d.useFallback(ctx, cmd, st, err)
}

func (d *Dispatcher) invoke(ctx context.Context, nodeID string, cmd model.Command, st *attempt) (any, error) {
	st.nodeID = nodeID
	st.path = model.PathGateway
	st.attempts++
	trace.SpanFromContext(ctx).AddEvent("gateway.invoke", trace.WithAttributes(
		attribute.String("vcmd.node_id", nodeID),
		attribute.Int("vcmd.attempt", st.attempts),
	))
	return d.gateway.Invoke(ctx, nodeID, cmd)
}

// useFallback runs cmd through the CLI, or reports cause when the CLI is
// absent or cannot serve the method.
func (d *Dispatcher) useFallback(ctx context.Context, cmd model.Command, st *attempt, cause error) model.Outcome {
	if d.fallback == nil || !d.fallback.Supports(cmd.Method) || !d.fallback.Available() {
		return model.FailureFromError(cause)
	}
	d.log.Infof("%v; falling back to CLI for %s", cause, cmd.Method)
	st.path = model.PathCLI
	out, err := d.fallback.Invoke(ctx, cmd)
	if err != nil {
		return model.FailureFromError(err)
	}
	return out
}

func (d *Dispatcher) noNode() error {
	return model.Errorf(model.KindNoNodeConnected, "no connected %s node found; start a node or install the CLI", d.platform)
}

func (d *Dispatcher) finish(ctx context.Context, span trace.Span, id string, cmd model.Command, st *attempt, out model.Outcome, dur time.Duration) {
	kind := model.KindNone
	if !out.OK() {
		kind = out.Kind
	}
	path := string(st.path)
	status := out.Status.String()

	dispatchTotal.WithLabelValues(path, status, kind.String()).Inc()
	dispatchDuration.WithLabelValues(path).Observe(dur.Seconds())

	span.SetAttributes(
		attribute.String("vcmd.path", path),
		attribute.String("vcmd.status", status),
		attribute.Int("vcmd.attempts", st.attempts),
	)
	if out.Status == model.StatusFailure {
		span.RecordError(out.Err())
		span.SetStatus(codes.Error, out.Message)
		d.log.Warnf("dispatch %s %s failed via %s: %s", id, cmd.Method, path, out.Message)
		if kind == model.KindTransportError || kind == model.KindWakeFailed {
			coremon.CaptureException(out.Err(), map[string]string{"method": cmd.Method, "path": path, "kind": kind.String()})
		}
	} else {
		span.SetStatus(codes.Ok, "")
		d.log.Infow("dispatch completed", map[string]any{
			"id": id, "method": cmd.Method, "path": path, "status": status, "attempts": st.attempts,
		})
	}

	now := d.now()
	if err := d.sink.RecordDispatch(metrics.DispatchRecord{
		DispatchID: id,
		Method:     cmd.Method,
		NodeID:     st.nodeID,
		Path:       path,
		Status:     status,
		Kind:       kind.String(),
		Attempts:   st.attempts,
		Fallback:   out.Fallback,
		Duration:   dur,
		Time:       now,
	}); err != nil {
		d.log.Errorf("metrics error: %v", err)
	}

	if d.bus != nil {
		d.bus.Publish(events.DispatchEvent{
			ID: id, Command: cmd, NodeID: st.nodeID, Path: st.path,
			Attempts: st.attempts, Outcome: out, Duration: dur, Time: now,
		})
	}

	if d.store != nil {
		rec := logging.Record{
			ID: id, Timestamp: now, Method: cmd.Method, Params: cmd.Params,
			NodeID: st.nodeID, Path: st.path, Attempts: st.attempts,
			Status: status, Message: out.Message, Duration: dur,
		}
		if kind != model.KindNone {
			rec.Kind = kind.String()
		}
		if err := d.store.Append(context.WithoutCancel(ctx), rec); err != nil {
			d.log.Errorf("audit append failed: %v", err)
		}
	}
}
