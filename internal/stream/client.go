package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"telemetry-sim/internal/model"
)

// ClientOutcome is how a watched stream reached CLOSED.
type ClientOutcome int

const (
	ClientEnded ClientOutcome = iota + 1
	ClientCancelled
	ClientFailed
)

func (o ClientOutcome) String() string {
	switch o {
	case ClientEnded:
		return "ended"
	case ClientCancelled:
		return "cancelled"
	case ClientFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type WatchResult struct {
	Outcome  ClientOutcome
	Received uint64
	Err      error
}

// Summary is the console line shown when the stream closes.
func (r WatchResult) Summary() string {
	switch r.Outcome {
	case ClientEnded:
		return "telemetry stream ended safely"
	case ClientCancelled:
		return "telemetry stream cancelled"
	default:
		return fmt.Sprintf("telemetry stream ended with error: %v", r.Err)
	}
}

// Handler is called for every received event. Returning an error closes the
// stream.
type Handler func(ev *model.TelemetryEvent) error

type Client struct {
	target   string
	clientID string
	logger   *slog.Logger
	opts     []grpc.DialOption
}

// NewClient connects over plaintext. opts are appended after the defaults.
func NewClient(target, clientID string, logger *slog.Logger, opts ...grpc.DialOption) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		target:   target,
		clientID: clientID,
		logger:   logger,
		opts:     opts,
	}
}

// Watch subscribes and reads until end-of-stream, ctx cancellation or a
// transport error. Cancelling ctx also aborts a read that is blocked
// waiting for the next event.
func (c *Client) Watch(ctx context.Context, handle Handler) WatchResult {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}, c.opts...)

	conn, err := grpc.NewClient(c.target, opts...)
	if err != nil {
		return WatchResult{Outcome: ClientFailed, Err: fmt.Errorf("grpc client %s: %w", c.target, err)}
	}
	defer conn.Close()

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	desc := &grpc.StreamDesc{StreamName: MethodName, ServerStreams: true}
	cs, err := conn.NewStream(streamCtx, desc, FullMethod)
	if err != nil {
		return c.closed(ctx, 0, fmt.Errorf("open telemetry stream: %w", err))
	}
	if err := cs.SendMsg(&model.TelemetryRequest{ClientID: c.clientID}); err != nil {
		return c.closed(ctx, 0, fmt.Errorf("send subscribe request: %w", err))
	}
	if err := cs.CloseSend(); err != nil {
		return c.closed(ctx, 0, fmt.Errorf("close send: %w", err))
	}
	c.logger.Info("telemetry stream connected", "target", c.target, "client_id", c.clientID)

	var received uint64
	for {
		ev := new(model.TelemetryEvent)
		if err := cs.RecvMsg(ev); err != nil {
			if errors.Is(err, io.EOF) {
				return WatchResult{Outcome: ClientEnded, Received: received}
			}
			return c.closed(ctx, received, err)
		}
		if err := ev.Validate(); err != nil {
			return WatchResult{Outcome: ClientFailed, Received: received, Err: fmt.Errorf("malformed telemetry frame: %w", err)}
		}
		received++
		if err := handle(ev); err != nil {
			return WatchResult{Outcome: ClientFailed, Received: received, Err: fmt.Errorf("handle event: %w", err)}
		}
	}
}

// closed tells a local cancellation apart from a transport or server error.
func (c *Client) closed(ctx context.Context, received uint64, err error) WatchResult {
	if ctx.Err() != nil {
		return WatchResult{Outcome: ClientCancelled, Received: received, Err: ctx.Err()}
	}
	return WatchResult{Outcome: ClientFailed, Received: received, Err: err}
}
