package stream

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"telemetry-sim/internal/model"
	"telemetry-sim/internal/queue"
)

func TestWebSocketBridge(t *testing.T) {
	q := queue.New()
	stop := make(chan struct{})
	svc := NewService(ServiceConfig{PollTimeout: 50 * time.Millisecond, MaxStreams: 1}, q, stop, nil, testLogger())
	srv := httptest.NewServer(svc)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?client_id=dashboard"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	q.Push(tempEvent("TEMP_FUEL_001", 1, 21.5))
	var ev model.TelemetryEvent
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.SensorID() != "TEMP_FUEL_001" || ev.Temperature.Temperature != 21.5 {
		t.Fatalf("got %+v", ev.Temperature)
	}

	// A second browser tab is refused while the first is connected.
	second, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("second dial: %v", err)
	}
	defer second.CloseNow()
	if _, _, err := second.Read(ctx); websocket.CloseStatus(err) != websocket.StatusTryAgainLater {
		t.Fatalf("second subscriber: %v", err)
	}

	close(stop)
	if _, _, err := conn.Read(ctx); websocket.CloseStatus(err) != websocket.StatusGoingAway {
		t.Fatalf("after stop: %v", err)
	}
}
