package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"telemetry-sim/internal/admin"
	"telemetry-sim/internal/config"
	"telemetry-sim/internal/metrics"
	"telemetry-sim/internal/model"
	"telemetry-sim/internal/queue"
	"telemetry-sim/internal/sensor"
	"telemetry-sim/internal/shutdown"
	"telemetry-sim/internal/stream"
)

// App is the server process: sensor fleet, queue, telemetry stream and the
// status surfaces around them.
type App struct {
	cfg     config.Config
	logger  *slog.Logger
	coord   *shutdown.Coordinator
	queue   *queue.Queue
	fleet   *sensor.Fleet
	sink    *healthSink
	service *stream.Service
	server  *stream.Server
	admin   *admin.Server
	metrics *metrics.Metrics
	health  *HealthStatus

	ready     chan struct{}
	readyOnce sync.Once
	addrs     boundAddrs
}

type boundAddrs struct {
	grpc   string
	status string
	probe  string
}

func New(cfg config.Config, catalog config.Catalog, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = catalog.Seed
	}

	health := NewHealthStatus()
	a := &App{
		cfg:    cfg,
		logger: logger,
		coord:  shutdown.New(logger),
		health: health,
		ready:  make(chan struct{}),
	}

	a.metrics = metrics.New(func() float64 { return float64(a.queue.Size()) })
	a.queue = queue.New(
		queue.WithCapacity(cfg.QueueCapacity),
		queue.WithDropHook(func(ev model.TelemetryEvent) {
			a.metrics.EventDropped()
			logger.Debug("telemetry dropped, queue full", "sensor_id", ev.SensorID(), "sequence", ev.Sequence())
		}),
	)

	fleet, err := sensor.NewFleet(catalog.Sensors, seed, logger)
	if err != nil {
		return nil, fmt.Errorf("sensor fleet: %w", err)
	}
	a.fleet = fleet
	a.sink = &healthSink{sink: a.queue, gate: a.coord, health: health, metrics: a.metrics}

	a.service = stream.NewService(stream.ServiceConfig{
		PollTimeout:    cfg.PollTimeout,
		MaxStreams:     cfg.MaxStreams,
		WriteTimeout:   cfg.WSWriteTimeout,
		OriginPatterns: originPatterns(cfg.CORSOrigins),
	}, a.queue, a.coord.Done(), a.metrics, logger)
	a.server = stream.NewServer(a.service, logger)

	if strings.TrimSpace(cfg.StatusAddr) != "" {
		a.admin = admin.New(admin.Options{
			CORSOrigins: cfg.CORSOrigins,
			Status:      func() any { return a.Status() },
			Ready:       func() bool { return !a.coord.Stopping() },
			Gatherer:    gatherer(a.metrics),
			Stream:      a.service,
		}, logger)
	}
	return a, nil
}

// Stop asks the running App to shut down, as an interrupt would.
func (a *App) Stop(reason string) {
	a.coord.Stop(reason)
}

// Ready is closed once every listener is bound.
func (a *App) Ready() <-chan struct{} { return a.ready }

// GRPCAddr is the bound telemetry listener address, valid after Ready.
func (a *App) GRPCAddr() string { return a.addrs.grpc }

// StatusAddr is the bound status listener address, valid after Ready.
func (a *App) StatusAddr() string { return a.addrs.status }

// ProbeAddr is the bound probe listener address, valid after Ready.
func (a *App) ProbeAddr() string { return a.addrs.probe }

func (a *App) Run(ctx context.Context) error {
	a.logger.Info("starting telemetry-sim",
		"version", a.cfg.Version,
		"listen_addr", a.cfg.ListenAddr,
		"sensors", a.fleet.Len(),
		"max_streams", a.cfg.MaxStreams,
	)
	runCtx, cancelRun := a.coord.Context(ctx)
	defer cancelRun()

	listenCtx, stopListen := context.WithCancel(ctx)
	defer stopListen()
	go a.coord.Listen(listenCtx, os.Interrupt, syscall.SIGTERM)

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- a.run(runCtx)
	}()

	var runErr error
	select {
	case runErr = <-runErrCh:
		// Startup error, runtime error or parent ctx cancelled.
	case <-a.coord.Done():
		a.logger.Info("starting graceful shutdown", "reason", a.coord.Reason(), "timeout", a.cfg.ShutdownTimeout)

		graceTimer := time.NewTimer(a.cfg.ShutdownTimeout)
		defer graceTimer.Stop()

		select {
		case runErr = <-runErrCh:
			// graceful stop completed in time
		case <-a.coord.Forced():
			runErr = context.Canceled
		case <-graceTimer.C:
			a.logger.Warn("graceful shutdown timeout reached, forcing shutdown", "timeout", a.cfg.ShutdownTimeout)
			runErr = context.DeadlineExceeded
		}
	}
	a.coord.Stop("server stopped")

	a.logger.Info("all loops stopped", "remaining_queue_size", a.queue.Size(), "dropped", a.queue.Dropped())
	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return runErr
	}
	a.logger.Info("telemetry-sim stopped")
	return nil
}

// Status is the snapshot served on /status.
func (a *App) Status() map[string]any {
	out := a.health.Snapshot()
	out["version"] = a.cfg.Version
	out["state"] = a.coord.State().String()
	out["queue_size"] = a.queue.Size()
	out["queue_dropped"] = a.queue.Dropped()
	out["active_streams"] = a.service.ActiveStreams()
	out["max_streams"] = a.cfg.MaxStreams
	out["sensors"] = a.fleet.Specs()
	return out
}

func (a *App) markReady() {
	a.readyOnce.Do(func() { close(a.ready) })
}

func (a *App) listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln, nil
}

// originPatterns turns CORS origins into the host patterns the websocket
// origin check expects.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			out = append(out, "*")
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			out = append(out, o)
			continue
		}
		out = append(out, u.Host)
	}
	return out
}

// gatherer keeps a nil registry from becoming a non-nil interface.
func gatherer(m *metrics.Metrics) prometheus.Gatherer {
	if reg := m.Registry(); reg != nil {
		return reg
	}
	return nil
}

// healthSink drops events once shutdown has begun, so nothing reaches the
// queue after the coordinator reports STOPPING.
type healthSink struct {
	sink    sensor.Sink
	gate    *shutdown.Coordinator
	health  *HealthStatus
	metrics *metrics.Metrics
}

func (s *healthSink) Push(ev model.TelemetryEvent) {
	s.gate.WhileRunning(func() {
		s.sink.Push(ev)
		s.health.MarkProduced(ev.Timestamp)
		s.metrics.EventProduced(ev.Type)
	})
}
