package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"telemetry-sim/internal/logging"
	"telemetry-sim/internal/metrics"
	"telemetry-sim/internal/model"
)

var (
	ErrStreamLimit  = errors.New("telemetry stream limit reached")
	ErrShuttingDown = errors.New("server is shutting down")
)

type ServiceConfig struct {
	PollTimeout time.Duration
	// MaxStreams caps concurrent subscribers; <= 0 means no cap. Every
	// subscriber drains the same queue, so more than one splits the events.
	MaxStreams int
	// WriteTimeout bounds a single websocket write.
	WriteTimeout time.Duration
	// OriginPatterns are the browser origins allowed to open the websocket.
	OriginPatterns []string
}

// Subscription describes who is on the other end of a stream.
type Subscription struct {
	ClientID  string
	Transport string
	Remote    string
}

// Service serves subscribers from the shared telemetry queue, over gRPC or
// the websocket bridge.
type Service struct {
	cfg     ServiceConfig
	source  Source
	stop    <-chan struct{}
	metrics *metrics.Metrics
	logger  *slog.Logger
	active  atomic.Int32
}

func NewService(cfg ServiceConfig, source Source, stop <-chan struct{}, m *metrics.Metrics, logger *slog.Logger) *Service {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:     cfg,
		source:  source,
		stop:    stop,
		metrics: m,
		logger:  logger,
	}
}

func (s *Service) ActiveStreams() int {
	return int(s.active.Load())
}

func (s *Service) acquire() bool {
	for {
		n := s.active.Load()
		if s.cfg.MaxStreams > 0 && int(n) >= s.cfg.MaxStreams {
			return false
		}
		if s.active.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Serve runs one delivery loop for sub. It fails fast with ErrShuttingDown
// or ErrStreamLimit; otherwise the Result says how the stream ended.
func (s *Service) Serve(ctx context.Context, sub Subscription, send SendFunc) (Result, error) {
	select {
	case <-s.stop:
		return Result{}, ErrShuttingDown
	default:
	}
	if !s.acquire() {
		s.metrics.StreamRejected()
		s.logger.Warn("telemetry stream rejected", "client_id", sub.ClientID, "remote", sub.Remote, "max_streams", s.cfg.MaxStreams)
		return Result{}, ErrStreamLimit
	}
	defer s.active.Add(-1)

	logger := s.logger.With(
		"session_id", uuid.NewString(),
		"client_id", sub.ClientID,
		"transport", sub.Transport,
		"remote", sub.Remote,
	)
	logger.Info("telemetry stream opened")
	s.metrics.StreamOpened()

	ctx = logging.NewContext(ctx, logger)
	res := NewDelivery(s.source, s.stop, s.cfg.PollTimeout, s.metrics).Run(ctx, send)
	s.metrics.StreamClosed(res.Outcome.String())

	switch res.Outcome {
	case OutcomeShutdown:
		logger.Info("telemetry stream terminated by shutdown", "delivered", res.Delivered)
	case OutcomeCancelled:
		logger.Info("telemetry stream cancelled by client", "delivered", res.Delivered)
	default:
		logger.Info("telemetry stream ended, client disconnected", "delivered", res.Delivered, "error", res.Err)
	}
	return res, nil
}

func (s *Service) GetTelemetryStream(req *model.TelemetryRequest, stream EventStream) error {
	ctx := stream.Context()
	sub := Subscription{ClientID: req.ClientID, Transport: "grpc"}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		sub.Remote = p.Addr.String()
	}

	res, err := s.Serve(ctx, sub, stream.Send)
	switch {
	case errors.Is(err, ErrStreamLimit):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, ErrShuttingDown):
		return status.Error(codes.Unavailable, err.Error())
	case err != nil:
		return err
	}

	switch res.Outcome {
	case OutcomeShutdown:
		return nil
	case OutcomeCancelled:
		return status.FromContextError(res.Err).Err()
	default:
		return res.Err
	}
}

// Server hosts the Service on a gRPC listener.
type Server struct {
	grpc   *grpc.Server
	logger *slog.Logger
}

func NewServer(service *Service, logger *slog.Logger, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gs := grpc.NewServer(opts...)
	RegisterTelemetryStreamer(gs, service)
	return &Server{grpc: gs, logger: logger}
}

func (s *Server) ListenAndServe(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(lis)
}

// Serve blocks until the server is shut down.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("telemetry server listening", "addr", lis.Addr().String())
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

// Shutdown waits for open streams to finish, then closes hard once ctx
// expires.
func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.logger.Warn("graceful stop timed out, closing open streams")
		s.grpc.Stop()
		<-done
		return ctx.Err()
	}
}
