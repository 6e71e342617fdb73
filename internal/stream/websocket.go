package stream

import (
	"context"
	"errors"
	"net/http"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"telemetry-sim/internal/model"
)

// ServeHTTP bridges one browser subscriber onto the telemetry stream. Each
// event is a JSON text frame. The subscriber identifies itself with
// ?client_id=.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.cfg.OriginPatterns})
	if err != nil {
		s.logger.Warn("websocket accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.CloseNow()

	// Nothing is expected from the browser; CloseRead handles its close
	// frame and cancels ctx when it goes away.
	ctx := conn.CloseRead(r.Context())
	sub := Subscription{
		ClientID:  r.URL.Query().Get("client_id"),
		Transport: "websocket",
		Remote:    r.RemoteAddr,
	}

	res, err := s.Serve(ctx, sub, func(ev *model.TelemetryEvent) error {
		wctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
		defer cancel()
		return wsjson.Write(wctx, conn, ev)
	})
	switch {
	case errors.Is(err, ErrStreamLimit):
		_ = conn.Close(websocket.StatusTryAgainLater, ErrStreamLimit.Error())
		return
	case errors.Is(err, ErrShuttingDown):
		_ = conn.Close(websocket.StatusGoingAway, ErrShuttingDown.Error())
		return
	}
	if res.Outcome == OutcomeShutdown {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}
