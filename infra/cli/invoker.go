// Package cli runs vehicle commands through the local command-line binary
// when no gateway node is connected. Commands that need an online vehicle are
// gated: a sleeping vehicle is only woken when the caller authorized it.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kilianp07/vcmd/config"
	"github.com/kilianp07/vcmd/core/model"
	coremon "github.com/kilianp07/vcmd/core/monitoring"
	"github.com/kilianp07/vcmd/infra/logger"
)

// StateOnline is the only probed state in which commands run without a wake.
const StateOnline = "online"

const stateUnknown = "unknown"

// Invoker is the CLI fallback path.
type Invoker struct {
	binary   string
	disabled bool
	settle   time.Duration
	runner   Runner
	sleep    func(time.Duration)
	log      logger.Logger

	once sync.Once
	path string
	ok   bool
}

// Option customises an Invoker.
type Option func(*Invoker)

// WithRunner replaces the subprocess runner.
func WithRunner(r Runner) Option { return func(i *Invoker) { i.runner = r } }

// WithSleep replaces the settle delay implementation.
func WithSleep(f func(time.Duration)) Option { return func(i *Invoker) { i.sleep = f } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(i *Invoker) { i.log = l } }

// NewInvoker builds the fallback from cfg. Availability is probed lazily on
// first use.
func NewInvoker(cfg config.CLIConfig, opts ...Option) *Invoker {
	cfg.SetDefaults()
	i := &Invoker{
		binary:   cfg.Binary,
		disabled: cfg.Disabled,
		settle:   cfg.WakeSettle(),
		runner:   ExecRunner{},
		sleep:    time.Sleep,
		log:      logger.New("cli"),
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Available reports whether the binary is on PATH. The lookup runs once per
// Invoker.
func (i *Invoker) Available() bool {
	if i.disabled {
		return false
	}
	i.once.Do(func() {
		p, err := i.runner.LookPath(i.binary)
		if err != nil {
			i.log.Infof("CLI fallback unavailable: %v", err)
			return
		}
		i.path, i.ok = p, true
	})
	return i.ok
}

// Supports reports whether method has a CLI mapping.
func (i *Invoker) Supports(method string) bool {
	_, a := actions[method]
	_, q := queries[method]
	return a || q
}

// Invoke runs cmd through the binary. A vehicle that is not online yields a
// RequiresWakeConfirmation outcome unless cmd authorizes the wake. Successful
// outcomes are flagged as fallback results.
func (i *Invoker) Invoke(ctx context.Context, cmd model.Command) (model.Outcome, error) {
	args, parse, err := i.plan(cmd.Method)
	if err != nil {
		return model.Outcome{}, err
	}
	if !i.Available() {
		return model.Outcome{}, model.Errorf(model.KindUnsupported, "%s binary not found", i.binary)
	}

	woke := false
	if RequiresWake(cmd.Method) {
		state := i.probe(ctx)
		if state != StateOnline {
			if !cmd.WakeAuthorized() {
				wakeTotal.WithLabelValues("confirmation_required").Inc()
				i.log.Infow("wake confirmation required", map[string]any{"method": cmd.Method, "state": state})
				return model.RequiresWake(cmd, state, wakeMessage(state)), nil
			}
			if err := i.wake(ctx, state); err != nil {
				return model.Outcome{}, err
			}
			woke = true
		}
	}

	out, err := i.run(ctx, args...)
	if err != nil {
		return model.Outcome{}, err
	}
	note := ""
	if woke {
		note = "Vehicle was woken before running the command through the local CLI."
	}
	o := model.Success(markFallback(parse(out), note))
	o.Fallback = true
	o.Note = note
	return o, nil
}

func (i *Invoker) plan(method string) ([]string, func(any) any, error) {
	if sub, ok := actions[method]; ok {
		return []string{"vehicle", sub, "--format", "json"}, unwrapResponse, nil
	}
	if q, ok := queries[method]; ok {
		parse := func(out any) any { return q.parse(section(out, q.endpoint)) }
		return []string{"vehicle", "data", "--endpoints", q.endpoint, "--format", "json"}, parse, nil
	}
	return nil, nil, model.Errorf(model.KindUnsupported, "method %s has no CLI fallback", method)
}

// probe reads the vehicle state without waking it. Failures report "unknown",
// which is gated like any other non-online state.
func (i *Invoker) probe(ctx context.Context) string {
	out, err := i.run(ctx, "vehicle", "info", "--format", "json")
	if err != nil {
		i.log.Warnf("vehicle state probe failed: %v", err)
		return stateUnknown
	}
	m, _ := out.(map[string]any)
	if resp, ok := m["response"].(map[string]any); ok {
		if s, ok := resp["state"].(string); ok && s != "" {
			return s
		}
	}
	if s, ok := m["state"].(string); ok && s != "" {
		return s
	}
	return stateUnknown
}

func (i *Invoker) wake(ctx context.Context, state string) error {
	i.log.Infof("waking vehicle (state %s)", state)
	if _, err := i.run(ctx, "vehicle", "wake", "--format", "json"); err != nil {
		wakeTotal.WithLabelValues("failed").Inc()
		werr := model.NewError(model.KindWakeFailed, "wake request failed", err)
		coremon.CaptureException(werr, map[string]string{"component": "cli"})
		return werr
	}
	i.sleep(i.settle)
	if now := i.probe(ctx); now != StateOnline {
		wakeTotal.WithLabelValues("failed").Inc()
		werr := model.Errorf(model.KindWakeFailed, "vehicle is still %s after wake", now)
		coremon.CaptureException(werr, map[string]string{"component": "cli"})
		return werr
	}
	wakeTotal.WithLabelValues("succeeded").Inc()
	return nil
}

// run executes the binary and decodes its JSON output. A non-zero exit is a
// CommandFailed; any other execution or decoding problem is a TransportError.
func (i *Invoker) run(ctx context.Context, args ...string) (any, error) {
	name := i.path
	if name == "" {
		name = i.binary
	}
	out, err := i.runner.Run(ctx, name, args...)
	if err != nil {
		var ee *ExitError
		if errors.As(err, &ee) {
			msg := ee.Stderr
			if msg == "" {
				msg = errorMessage(out)
			}
			if msg == "" {
				msg = fmt.Sprintf("%s %s failed", i.binary, strings.Join(args[:2], " "))
			}
			return nil, model.NewError(model.KindCommandFailed, msg, err)
		}
		return nil, model.NewError(model.KindTransportError, "run "+i.binary, err)
	}
	trimmed := strings.TrimSpace(string(out))
	if trimmed == "" {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return nil, model.NewError(model.KindTransportError, "unparseable CLI output", err)
	}
	return v, nil
}

func unwrapResponse(out any) any {
	if m, ok := out.(map[string]any); ok {
		if resp, ok := m["response"]; ok {
			return resp
		}
	}
	return out
}

func errorMessage(out []byte) string {
	var v struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(out, &v) != nil {
		return ""
	}
	if v.Message != "" {
		return v.Message
	}
	switch e := v.Error.(type) {
	case string:
		return e
	case map[string]any:
		if s, ok := e["message"].(string); ok {
			return s
		}
	}
	return ""
}

// markFallback tags map results so provenance survives serialization of the
// bare value.
func markFallback(v any, note string) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	out := make(map[string]any, len(m)+2)
	for k, val := range m {
		out[k] = val
	}
	out["fallback"] = true
	if note != "" {
		out["note"] = note
	}
	return out
}

func wakeMessage(state string) string {
	return fmt.Sprintf("Vehicle is %s. Waking it costs a billable Fleet API call and battery; retry with force_wake=true to proceed.", state)
}
