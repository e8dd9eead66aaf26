package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/vcmd/core/model"
	coremon "github.com/kilianp07/vcmd/core/monitoring"
	"github.com/kilianp07/vcmd/infra/logger"
)

const (
	commandSuffix  = "command"
	responseSuffix = "response/"
)

// Dispatcher executes one vehicle command.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd model.Command) model.Outcome
}

type commandRequest struct {
	RequestID string         `json:"request_id"`
	Method    string         `json:"method"`
	Params    map[string]any `json:"params"`
}

type commandResponse struct {
	RequestID string        `json:"request_id"`
	Outcome   model.Outcome `json:"outcome"`
}

// CommandListener accepts commands on <prefix>/command and answers on
// <prefix>/response/<request_id>.
type CommandListener struct {
	client     Client
	dispatcher Dispatcher
	timeout    time.Duration
	logger     logger.Logger
}

// NewCommandListener builds a listener. timeout bounds each dispatch; zero
// means 30s.
func NewCommandListener(client Client, d Dispatcher, timeout time.Duration) *CommandListener {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CommandListener{client: client, dispatcher: d, timeout: timeout, logger: logger.New("mqtt_commands")}
}

// Start subscribes to the command topic. Dispatches run on ctx.
func (l *CommandListener) Start(ctx context.Context) error {
	return l.client.Subscribe(commandSuffix, func(payload []byte) {
		coremon.Go(func() { l.handle(ctx, payload) })
	})
}

func (l *CommandListener) handle(ctx context.Context, payload []byte) {
	var req commandRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		l.logger.Warnf("discarding malformed command: %v", err)
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	var out model.Outcome
	if req.Method == "" {
		out = model.Failure(model.KindUnsupported, "method is required")
	} else {
		dctx, cancel := context.WithTimeout(ctx, l.timeout)
		out = l.dispatcher.Dispatch(dctx, model.Command{Method: req.Method, Params: req.Params})
		cancel()
	}
	l.logger.Infow("mqtt command handled", map[string]any{
		"request_id": req.RequestID,
		"method":     req.Method,
		"status":     out.Status.String(),
	})
	body, err := json.Marshal(commandResponse{RequestID: req.RequestID, Outcome: out})
	if err != nil {
		l.logger.Errorf("encode response: %v", err)
		return
	}
	if err := l.client.Publish(responseSuffix+req.RequestID, body); err != nil {
		l.logger.Warnf("publish response %s: %v", req.RequestID, err)
	}
}
