package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"telemetry-sim/internal/app"
	"telemetry-sim/internal/config"
	"telemetry-sim/internal/model"
	"telemetry-sim/internal/sensor"
)

func TestWatchJSONKeepsStdoutClean(t *testing.T) {
	t.Setenv("TELEMETRY_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("TELEMETRY_LOG_LEVEL", "debug")

	cfg := config.Config{
		ListenAddr:      "127.0.0.1:0",
		ServerAddr:      "127.0.0.1:0",
		PollTimeout:     50 * time.Millisecond,
		MaxStreams:      1,
		ShutdownTimeout: 2 * time.Second,
		HealthInterval:  time.Second,
		WSWriteTimeout:  time.Second,
		Seed:            1,
		LogLevel:        "info",
	}
	catalog := config.Catalog{Sensors: []sensor.Spec{
		{ID: "TEMP_ENG_001", Type: model.TelemetryTypeTemperature, Subsystem: model.SubsystemEngine, Unit: "celsius", Interval: 10 * time.Millisecond},
	}}
	a, err := app.New(cfg, catalog, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(context.Background()) }()
	<-a.Ready()

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs([]string{"watch", "--json", "--server", a.GRPCAddr(), "--client-id", "json-watch"})
	defer rootCmd.SetArgs(nil)

	time.AfterFunc(300*time.Millisecond, func() { a.Stop("test done") })
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if err := <-runErr; err != nil {
		t.Fatalf("Run: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) == 0 || lines[0] == "" {
		t.Fatal("no events printed")
	}
	for _, line := range lines {
		var ev model.TelemetryEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("stdout line is not an event: %q", line)
		}
		if err := ev.Validate(); err != nil {
			t.Fatalf("stdout line %q: %v", line, err)
		}
	}
	if !strings.Contains(stderr.String(), "telemetry stream connected") || !strings.Contains(stderr.String(), "telemetry stream ended safely") {
		t.Fatalf("stderr=%q", stderr.String())
	}
}
