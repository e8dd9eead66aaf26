// Package gateway talks to the command gateway over its HTTP tool endpoint.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/kilianp07/vcmd/config"
	"github.com/kilianp07/vcmd/core/model"
	"github.com/kilianp07/vcmd/infra/logger"
)

const (
	// InvokePath is the gateway tool invocation endpoint.
	InvokePath = "/tools/invoke"
	// DefaultTimeout bounds a single gateway call.
	DefaultTimeout = 30 * time.Second

	toolNodes     = "nodes"
	actionStatus  = "status"
	invokeCommand = "system.run"
	maxBodyBytes  = 4 << 20
)

// ConnectionSource supplies the gateway address and token.
type ConnectionSource interface {
	Resolve() config.Connection
}

// Client lists nodes and forwards invocations through the gateway.
type Client struct {
	conn    ConnectionSource
	http    *http.Client
	timeout time.Duration
	action  string
	log     logger.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithAction selects the nodes tool action used for invocations.
func WithAction(a string) Option {
	return func(c *Client) {
		if a != "" {
			c.action = a
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(c *Client) { c.log = l } }

// NewClient creates a gateway client.
func NewClient(conn ConnectionSource, opts ...Option) *Client {
	c := &Client{
		conn:    conn,
		http:    &http.Client{},
		timeout: DefaultTimeout,
		action:  "invoke",
		log:     logger.New("gateway"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type toolRequest struct {
	Tool   string `json:"tool"`
	Action string `json:"action"`
	Args   any    `json:"args"`
}

type invokeArgs struct {
	Node             string `json:"node"`
	InvokeCommand    string `json:"invokeCommand"`
	InvokeParamsJSON string `json:"invokeParamsJson"`
	TimeoutMs        int64  `json:"timeoutMs"`
}

// ListNodes returns the nodes currently known to the gateway.
func (c *Client) ListNodes(ctx context.Context) ([]model.NodeDescriptor, error) {
	env, err := c.call(ctx, "list", toolRequest{Tool: toolNodes, Action: actionStatus, Args: map[string]any{}})
	if err != nil {
		return nil, err
	}
	if env.Nodes != nil {
		return env.Nodes, nil
	}
	if !env.OK {
		return nil, model.NewError(model.KindTransportError, env.ErrorMessage("node listing failed"), nil)
	}
	var listing struct {
		Nodes []model.NodeDescriptor `json:"nodes"`
	}
	raw, err := json.Marshal(env.Value())
	if err != nil {
		return nil, fmt.Errorf("encode node listing: %w", err)
	}
	if err := json.Unmarshal(raw, &listing); err != nil {
		return nil, fmt.Errorf("decode node listing: %w", err)
	}
	return listing.Nodes, nil
}

// Invoke forwards cmd to nodeID and returns the normalized result. Errors are
// *model.DispatchError of kind StaleNode, TransportError or CommandFailed.
func (c *Client) Invoke(ctx context.Context, nodeID string, cmd model.Command) (any, error) {
	params, err := json.Marshal(struct {
		Method string         `json:"method"`
		Params map[string]any `json:"params"`
	}{cmd.Method, cmd.ParamsOrEmpty()})
	if err != nil {
		return nil, model.NewError(model.KindCommandFailed, "encode params", err)
	}
	req := toolRequest{
		Tool:   toolNodes,
		Action: c.action,
		Args: invokeArgs{
			Node:             nodeID,
			InvokeCommand:    invokeCommand,
			InvokeParamsJSON: string(params),
			TimeoutMs:        c.timeout.Milliseconds(),
		},
	}
	env, err := c.call(ctx, "invoke", req)
	if err != nil {
		return nil, err
	}
	if !env.OK {
		msg := env.ErrorMessage(fmt.Sprintf("command %s failed", cmd.Method))
		return nil, model.NewError(classifyReply(env.errorType()), msg, nil)
	}
	return env.Value(), nil
}

func (c *Client) call(ctx context.Context, op string, body toolRequest) (env *Envelope, err error) {
	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(op, model.KindOf(err).String()).Observe(time.Since(start).Seconds())
	}()

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn := c.conn.Resolve()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, conn.BaseURL()+InvokePath, bytes.NewReader(payload))
	if err != nil {
		return nil, model.NewError(model.KindTransportError, "build gateway request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if conn.Token != "" {
		req.Header.Set("Authorization", "Bearer "+conn.Token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, model.NewError(classify("", transportMessage(err), model.KindTransportError), "gateway request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, model.NewError(model.KindTransportError, "read gateway response", err)
	}
	var decoded Envelope
	decodeErr := json.Unmarshal(data, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("gateway returned %s", resp.Status)
		errType := ""
		if decodeErr == nil && decoded.Error != nil {
			msg = decoded.ErrorMessage(msg)
			errType = decoded.Error.Type
		} else if len(data) > 0 && decodeErr != nil {
			msg = fmt.Sprintf("%s: %s", msg, bytes.TrimSpace(data))
		}
		c.log.Debugf("gateway %s failed: %s", op, msg)
		return nil, model.NewError(classify(errType, msg, model.KindTransportError), msg, nil)
	}
	if decodeErr != nil {
		return nil, model.NewError(model.KindTransportError, "decode gateway response", decodeErr)
	}
	return &decoded, nil
}
