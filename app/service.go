package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	apidispatch "github.com/kilianp07/vcmd/api/dispatch"
	"github.com/kilianp07/vcmd/config"
	"github.com/kilianp07/vcmd/core/dispatch"
	"github.com/kilianp07/vcmd/core/dispatch/logging"
	corelogger "github.com/kilianp07/vcmd/core/logger"
	coremetrics "github.com/kilianp07/vcmd/core/metrics"
	"github.com/kilianp07/vcmd/core/model"
	coremon "github.com/kilianp07/vcmd/core/monitoring"
	"github.com/kilianp07/vcmd/core/nodes"
	"github.com/kilianp07/vcmd/core/triggers"
	"github.com/kilianp07/vcmd/infra/cli"
	"github.com/kilianp07/vcmd/infra/gateway"
	"github.com/kilianp07/vcmd/infra/logger"
	"github.com/kilianp07/vcmd/infra/metrics"
	"github.com/kilianp07/vcmd/infra/monitoring"
	"github.com/kilianp07/vcmd/infra/mqtt"
	"github.com/kilianp07/vcmd/infra/tracing"
	"github.com/kilianp07/vcmd/internal/eventbus"
)

// Service wires the dispatcher with its gateway, fallback and side channels.
type Service struct {
	Config     *config.Config
	Connection *config.ConnectionResolver
	Gateway    *gateway.Client
	Nodes      *nodes.Registry
	CLI        *cli.Invoker
	Dispatcher *dispatch.Dispatcher

	bus           *eventbus.Bus
	sink          coremetrics.MetricsSink
	audit         logging.Store
	log           logger.Logger
	stopTracing   func(context.Context) error
	mqttConnect   func(mqtt.Config) (mqttClient, error)
	startPromHTTP func(ctx context.Context, addr string, routes map[string]http.Handler) error
}

var setupTracing = tracing.Setup

type mqttClient interface {
	mqtt.Client
	Disconnect()
}

// New creates a Service from the configuration. Nothing touches the network
// until a command is dispatched or Run is called.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	if cfg.Debug {
		logger.SetLevel(corelogger.LevelDebug)
	}
	logg := logger.New("service")

	prevMon := coremon.Init(nil)
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		logg.Warnf("sentry disabled: %v", err)
	} else {
		coremon.Init(mon)
	}

	stopTracing, err := setupTracing(ctx, cfg.Tracing)
	if err != nil {
		logg.Warnf("tracing disabled: %v", err)
	}
	// abort undoes the process-wide setup above when New fails.
	abort := func(err error) (*Service, error) {
		if stopTracing != nil {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = stopTracing(sctx)
			cancel()
		}
		coremon.Flush(2 * time.Second)
		coremon.Init(prevMon)
		return nil, err
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return abort(fmt.Errorf("metrics sink: %w", err))
	}
	audit, err := logging.Open(cfg.Audit)
	if err != nil {
		return abort(fmt.Errorf("audit store: %w", err))
	}

	bus := eventbus.New()
	conn := config.NewConnectionResolver(cfg.Gateway)
	gw := gateway.NewClient(conn,
		gateway.WithTimeout(cfg.Gateway.Timeout()),
		gateway.WithAction(cfg.Gateway.Action),
		gateway.WithLogger(logger.New("gateway")),
	)
	reg := nodes.NewRegistry(gw, cfg.Platform, logger.New("nodes"))
	reg.SetEventBus(bus)
	fallback := cli.NewInvoker(cfg.CLI, cli.WithLogger(logger.New("cli")))

	opts := []dispatch.Option{
		dispatch.WithLogger(logger.New("dispatch")),
		dispatch.WithMetricsSink(sink),
		dispatch.WithEventBus(bus),
		dispatch.WithPlatform(cfg.Platform),
	}
	if audit != nil {
		opts = append(opts, dispatch.WithAuditStore(audit))
	}
	d, err := dispatch.New(reg, gw, fallback, opts...)
	if err != nil {
		_ = closeStore(audit)
		return abort(fmt.Errorf("dispatcher: %w", err))
	}

	return &Service{
		Config:      cfg,
		Connection:  conn,
		Gateway:     gw,
		Nodes:       reg,
		CLI:         fallback,
		Dispatcher:  d,
		bus:         bus,
		sink:        sink,
		audit:       audit,
		log:         logg,
		stopTracing: stopTracing,
		mqttConnect: func(c mqtt.Config) (mqttClient, error) {
			return mqtt.NewPahoClient(c)
		},
		startPromHTTP: metrics.StartPromServer,
	}, nil
}

// Dispatch runs one command.
func (s *Service) Dispatch(ctx context.Context, cmd model.Command) model.Outcome {
	return s.Dispatcher.Dispatch(ctx, cmd)
}

// Bus exposes the event bus for additional subscribers.
func (s *Service) Bus() eventbus.EventBus { return s.bus }

// Audit returns the dispatch audit store, nil when auditing is off.
func (s *Service) Audit() logging.Store { return s.audit }

// Run starts the long-running components and blocks until ctx is canceled.
// The metrics endpoint (with the audit API), the trigger monitor and the
// MQTT bridge only start when configured.
func (s *Service) Run(ctx context.Context) error {
	cfg := s.Config
	metrics.StartEventCollector(ctx, s.bus, s.sink)

	if addr := cfg.Metrics.PrometheusAddr; addr != "" {
		routes := map[string]http.Handler{}
		if s.audit != nil {
			routes[apidispatch.LogsPath] = apidispatch.NewLogHandler(s.audit, cfg.Audit.APIToken)
		}
		go func() {
			if err := s.startPromHTTP(ctx, addr, routes); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	if cfg.MQTT.Enabled() {
		client, err := s.mqttConnect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("mqtt client: %w", err)
		}
		defer client.Disconnect()
		mqtt.NewOutcomePublisher(client).Start(ctx, s.bus)
		if cfg.MQTT.Commands {
			if err := mqtt.NewCommandListener(client, s.Dispatcher, cfg.Gateway.Timeout()).Start(ctx); err != nil {
				return fmt.Errorf("mqtt commands: %w", err)
			}
		}
	}

	if cfg.Triggers.Enabled {
		mon, err := triggers.NewMonitor(s.Dispatcher, cfg.Triggers.Interval(),
			triggers.WithEventBus(s.bus),
			triggers.WithLogger(logger.New("triggers")),
			triggers.WithDebug(cfg.Debug),
		)
		if err != nil {
			return fmt.Errorf("trigger monitor: %w", err)
		}
		mon.Start(ctx)
		defer mon.Stop()
	}

	s.log.Infof("service running (platform %s, gateway %s)", cfg.Platform, s.Connection.Resolve().Addr())
	<-ctx.Done()
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	s.bus.Close()
	if err := closeStore(s.audit); err != nil {
		errs = append(errs, fmt.Errorf("audit: %w", err))
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	if s.stopTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.stopTracing(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracing: %w", err))
		}
	}
	coremon.Flush(2 * time.Second)
	return errors.Join(errs...)
}

func closeStore(st logging.Store) error {
	if st == nil {
		return nil
	}
	return st.Close()
}
