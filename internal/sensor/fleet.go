package sensor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Fleet runs one Simulator per catalogue entry, each in its own goroutine.
type Fleet struct {
	logger *slog.Logger
	specs  []Spec
	sims   []*Simulator
}

// NewFleet builds the simulators. A non-zero seed makes every run of the
// fleet reproducible; each sensor derives its own stream from it.
func NewFleet(specs []Spec, seed uint64, logger *slog.Logger) (*Fleet, error) {
	if len(specs) == 0 {
		return nil, errors.New("no sensors configured")
	}
	if logger == nil {
		logger = slog.Default()
	}
	seen := make(map[string]struct{}, len(specs))
	f := &Fleet{logger: logger, specs: append([]Spec(nil), specs...)}
	for i, spec := range specs {
		if _, dup := seen[spec.ID]; dup {
			return nil, fmt.Errorf("duplicate sensor id %q", spec.ID)
		}
		seen[spec.ID] = struct{}{}

		var sensorSeed uint64
		if seed != 0 {
			sensorSeed = seed + uint64(i)*0x100000001b3
		}
		sim, err := NewSimulator(spec, sensorSeed, logger)
		if err != nil {
			return nil, err
		}
		f.sims = append(f.sims, sim)
	}
	return f, nil
}

func (f *Fleet) Len() int { return len(f.sims) }

func (f *Fleet) Specs() []Spec { return append([]Spec(nil), f.specs...) }

// Run blocks until ctx is done and every simulator has returned.
func (f *Fleet) Run(ctx context.Context, sink Sink) error {
	f.logger.Info("starting sensor simulators", "count", len(f.sims))
	g, gctx := errgroup.WithContext(ctx)
	for _, sim := range f.sims {
		g.Go(func() error {
			return sim.Run(gctx, sink)
		})
	}
	err := g.Wait()
	f.logger.Info("sensor simulators stopped", "count", len(f.sims))
	return err
}
