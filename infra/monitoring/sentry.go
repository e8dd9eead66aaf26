// Package monitoring reports unexpected dispatch failures to Sentry.
package monitoring

import (
	"errors"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/kilianp07/vcmd/config"
	"github.com/kilianp07/vcmd/core/model"
	coremon "github.com/kilianp07/vcmd/core/monitoring"
)

// NewSentryMonitor initializes the Sentry SDK. Without a DSN a NopMonitor is
// returned and nothing is initialized.
func NewSentryMonitor(cfg config.SentryConfig) (coremon.Monitor, error) {
	return newSentryMonitor(cfg, nil)
}

func newSentryMonitor(cfg config.SentryConfig, beforeSend func(*sentry.Event, *sentry.EventHint) *sentry.Event) (coremon.Monitor, error) {
	if !cfg.Enabled() {
		return coremon.NopMonitor{}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		TracesSampleRate: cfg.TracesSampleRate,
		AttachStacktrace: true,
		BeforeSend:       beforeSend,
	}); err != nil {
		return nil, err
	}
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("service", "vcmd")
	})
	return &sentryMonitor{cfg: cfg}, nil
}

type sentryMonitor struct {
	cfg config.SentryConfig
}

// CaptureException reports err. Dispatch errors are tagged and grouped by
// their kind so that one flaky node does not spread across many issues.
func (s *sentryMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	var de *model.DispatchError
	isDispatch := errors.As(err, &de)
	if isDispatch && s.cfg.Ignored(de.Kind.String()) {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		if isDispatch {
			scope.SetTag("kind", de.Kind.String())
			scope.SetFingerprint([]string{"dispatch", de.Kind.String(), tags["method"]})
		}
		sentry.CaptureException(err)
	})
}

// Recover must be deferred directly. It reports the panic and re-panics.
func (s *sentryMonitor) Recover() {
	if r := recover(); r != nil {
		sentry.CurrentHub().Recover(r)
		sentry.Flush(2 * time.Second)
		panic(r)
	}
}

func (s *sentryMonitor) Flush(timeout time.Duration) { sentry.Flush(timeout) }
