package sensor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"telemetry-sim/internal/model"
)

// Spec is one entry of the sensor catalogue.
type Spec struct {
	ID        string              `yaml:"id" json:"id"`
	Type      model.TelemetryType `yaml:"kind" json:"kind"`
	Subsystem model.Subsystem     `yaml:"subsystem" json:"subsystem"`
	Unit      string              `yaml:"unit" json:"unit"`
	Interval  time.Duration       `yaml:"interval" json:"interval"`
	Initial   []float64           `yaml:"initial,omitempty" json:"initial,omitempty"`
	Delta     *float64            `yaml:"delta,omitempty" json:"delta,omitempty"`
}

func (s Spec) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return errors.New("sensor id is required")
	}
	kind, err := KindFor(s.Type)
	if err != nil {
		return fmt.Errorf("sensor %s: %w", s.ID, err)
	}
	if !s.Subsystem.Valid() {
		return fmt.Errorf("sensor %s: unknown subsystem %q", s.ID, s.Subsystem)
	}
	if strings.TrimSpace(s.Unit) == "" {
		return fmt.Errorf("sensor %s: unit is required", s.ID)
	}
	if s.Interval <= 0 {
		return fmt.Errorf("sensor %s: interval must be > 0", s.ID)
	}
	if len(s.Initial) > 0 && len(s.Initial) != len(kind.Initial()) {
		return fmt.Errorf("sensor %s: %s takes %d initial values, got %d", s.ID, s.Type, len(kind.Initial()), len(s.Initial))
	}
	if s.Delta != nil && *s.Delta < 0 {
		return fmt.Errorf("sensor %s: delta must be >= 0", s.ID)
	}
	return nil
}

// State is the continuous simulation state of one sensor. It belongs to the
// Simulator that created it and is never shared.
type State struct {
	SensorID  string
	Subsystem model.Subsystem
	Unit      string
	Values    []float64
	Sequence  uint32
	Interval  time.Duration
}

// Sink receives the events a Simulator produces.
type Sink interface {
	Push(model.TelemetryEvent)
}

type Simulator struct {
	kind   Kind
	state  State
	delta  float64
	rng    *rand.Rand
	now    func() time.Time
	logger *slog.Logger
}

// NewSimulator builds a simulator for spec. A zero seed picks a random one.
func NewSimulator(spec Spec, seed uint64, logger *slog.Logger) (*Simulator, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	kind, _ := KindFor(spec.Type)

	values := kind.Initial()
	if len(spec.Initial) > 0 {
		values = append([]float64(nil), spec.Initial...)
	}
	delta := kind.Delta()
	if spec.Delta != nil {
		delta = *spec.Delta
	}
	if seed == 0 {
		seed = rand.Uint64()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Simulator{
		kind: kind,
		state: State{
			SensorID:  spec.ID,
			Subsystem: spec.Subsystem,
			Unit:      spec.Unit,
			Values:    values,
			Interval:  spec.Interval,
		},
		delta:  delta,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now:    time.Now,
		logger: logger.With("sensor_id", spec.ID, "kind", spec.Type),
	}, nil
}

func (s *Simulator) SensorID() string { return s.state.SensorID }

// Run emits one event per interval into sink until ctx is done. The stop
// condition is checked again right after each wait so nothing is pushed once
// ctx has been cancelled.
func (s *Simulator) Run(ctx context.Context, sink Sink) error {
	s.logger.Debug("sensor simulator started", "interval", s.state.Interval)
	timer := time.NewTimer(s.state.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("sensor simulator stopped", "sequence", s.state.Sequence)
			return nil
		case <-timer.C:
		}
		if ctx.Err() != nil {
			s.logger.Debug("sensor simulator stopped", "sequence", s.state.Sequence)
			return nil
		}

		ev := s.Step()
		sink.Push(ev)
		s.logger.Debug("telemetry queued", "sequence", ev.Sequence(), "values", ev.Values(), "status", ev.Status())
		timer.Reset(s.state.Interval)
	}
}

// Step advances the random walk by one tick and returns the resulting event.
func (s *Simulator) Step() model.TelemetryEvent {
	for i := range s.state.Values {
		s.state.Values[i] += (s.rng.Float64()*2 - 1) * s.delta
	}
	status := s.kind.Classify(s.state.Values)
	s.state.Sequence++
	return s.kind.Event(&s.state, status, s.now().UTC())
}
