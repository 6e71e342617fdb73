package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

func (a *App) runProbeListener(ctx context.Context, ln net.Listener) error {
	defer func() { _ = ln.Close() }()

	addr := ln.Addr().String()
	a.logger.Info("probe endpoint listening", "addr", addr)

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, acceptErr := ln.Accept()
		if acceptErr != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(acceptErr, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(acceptErr, &ne) && ne.Timeout() {
				time.Sleep(100 * time.Millisecond)
				continue
			}
			return fmt.Errorf("accept probe endpoint %s: %w", addr, acceptErr)
		}

		_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
		_, _ = conn.Write([]byte("telemetry-sim:ok\n"))
		_ = conn.Close()
	}
}
