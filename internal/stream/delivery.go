package stream

import (
	"context"
	"time"

	"telemetry-sim/internal/logging"
	"telemetry-sim/internal/metrics"
	"telemetry-sim/internal/model"
)

const DefaultPollTimeout = 500 * time.Millisecond

// Outcome is why a delivery loop ended.
type Outcome int

const (
	OutcomeShutdown Outcome = iota + 1
	OutcomeDisconnected
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeShutdown:
		return "shutdown"
	case OutcomeDisconnected:
		return "disconnected"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

type Result struct {
	Outcome   Outcome
	Delivered uint64
	Err       error
}

// Source is the consumer end of the telemetry queue.
type Source interface {
	TryPop(timeout time.Duration) (model.TelemetryEvent, bool)
}

// SendFunc writes one event to the subscriber.
type SendFunc func(ev *model.TelemetryEvent) error

// Delivery drains a Source into one subscriber. The bounded poll is what
// keeps the loop responsive to stop without the queue being woken.
type Delivery struct {
	source      Source
	stop        <-chan struct{}
	pollTimeout time.Duration
	metrics     *metrics.Metrics
}

func NewDelivery(source Source, stop <-chan struct{}, pollTimeout time.Duration, m *metrics.Metrics) *Delivery {
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	return &Delivery{
		source:      source,
		stop:        stop,
		pollTimeout: pollTimeout,
		metrics:     m,
	}
}

func (d *Delivery) stopping() bool {
	select {
	case <-d.stop:
		return true
	default:
		return false
	}
}

// Run delivers until the subscriber goes away or stop is closed. A send
// failure loses the event in flight. It logs through the logger carried by
// ctx.
func (d *Delivery) Run(ctx context.Context, send SendFunc) Result {
	logger := logging.FromContext(ctx)
	var delivered uint64
	for {
		if err := ctx.Err(); err != nil {
			return Result{Outcome: OutcomeCancelled, Delivered: delivered, Err: err}
		}
		if d.stopping() {
			return Result{Outcome: OutcomeShutdown, Delivered: delivered}
		}

		ev, ok := d.source.TryPop(d.pollTimeout)
		if !ok {
			continue
		}
		if err := send(&ev); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{Outcome: OutcomeCancelled, Delivered: delivered, Err: ctxErr}
			}
			return Result{Outcome: OutcomeDisconnected, Delivered: delivered, Err: err}
		}
		delivered++
		d.metrics.EventDelivered()
		logger.Debug("telemetry sent", "sensor_id", ev.SensorID(), "sequence", ev.Sequence())
	}
}
