package app

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"golang.org/x/sync/errgroup"
)

func (a *App) run(ctx context.Context) error {
	var bound []net.Listener
	closeBound := func() {
		for _, ln := range bound {
			_ = ln.Close()
		}
	}

	grpcLn, err := a.listen(a.cfg.ListenAddr)
	if err != nil {
		return err
	}
	bound = append(bound, grpcLn)
	a.addrs.grpc = grpcLn.Addr().String()

	var statusLn, probeLn net.Listener
	if a.admin != nil {
		if statusLn, err = a.listen(a.cfg.StatusAddr); err != nil {
			closeBound()
			return err
		}
		bound = append(bound, statusLn)
		a.addrs.status = statusLn.Addr().String()
	}
	if a.cfg.ProbeListenAddr != "" {
		if probeLn, err = a.listen(a.cfg.ProbeListenAddr); err != nil {
			closeBound()
			return err
		}
		a.addrs.probe = probeLn.Addr().String()
	}

	g, gctx := errgroup.WithContext(ctx)
	if statusLn != nil {
		g.Go(func() error {
			return a.admin.Serve(statusLn)
		})
	}
	if probeLn != nil {
		g.Go(func() error {
			return a.runProbeListener(gctx, probeLn)
		})
	}
	g.Go(func() error {
		return a.server.Serve(grpcLn)
	})
	g.Go(func() error {
		return a.fleet.Run(gctx, a.sink)
	})
	g.Go(func() error {
		return a.runHealthLoop(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.stopServers()
	})
	a.markReady()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// stopServers ends every stream before the listeners close. Delivery loops
// only exit on the coordinator, so it is stopped first even when the parent
// context is what ended the run.
func (a *App) stopServers() error {
	a.coord.Stop("context cancelled")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.admin != nil {
		if err := a.admin.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *App) runHealthLoop(ctx context.Context) error {
	t := time.NewTicker(a.cfg.HealthInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			a.logHealth()
		}
	}
}

func (a *App) logHealth() {
	a.logger.Log(context.Background(), slog.LevelDebug, "telemetry health",
		"snapshot", a.health.Snapshot(),
		"queue_size", a.queue.Size(),
		"active_streams", a.service.ActiveStreams(),
	)
}
