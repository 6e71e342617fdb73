package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"telemetry-sim/internal/model"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog: %v", err)
	}
	want := map[string]time.Duration{
		"TEMP_ENG_001":    300 * time.Millisecond,
		"TEMP_FUEL_001":   300 * time.Millisecond,
		"PRESS_ENG_001":   450 * time.Millisecond,
		"PRESS_FUEL_002":  350 * time.Millisecond,
		"VELO_STAGE1_001": 350 * time.Millisecond,
	}
	if len(c.Sensors) != len(want) {
		t.Fatalf("got %d sensors", len(c.Sensors))
	}
	for _, s := range c.Sensors {
		if want[s.ID] != s.Interval {
			t.Errorf("%s interval=%s, want %s", s.ID, s.Interval, want[s.ID])
		}
	}
	if c.Sensors[4].Type != model.TelemetryTypeVelocity || c.Sensors[4].Subsystem != model.SubsystemStage1 {
		t.Fatalf("velocity sensor: %+v", c.Sensors[4])
	}
}

func TestParseCatalogOverrides(t *testing.T) {
	data := []byte(`
seed: 7
sensors:
  - id: TEMP_ENG_001
    kind: TEMPERATURE
    subsystem: ENGINE
    unit: celsius
    interval: 1.5s
    initial: [-40]
    delta: 0
`)
	c, err := ParseCatalog("pinned.yaml", data)
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	if c.Seed != 7 {
		t.Fatalf("seed=%d", c.Seed)
	}
	s := c.Sensors[0]
	if s.Interval != 1500*time.Millisecond {
		t.Fatalf("interval=%s", s.Interval)
	}
	if len(s.Initial) != 1 || s.Initial[0] != -40 {
		t.Fatalf("initial=%v", s.Initial)
	}
	if s.Delta == nil || *s.Delta != 0 {
		t.Fatalf("delta=%v", s.Delta)
	}
}

func TestParseCatalogSchemaErrors(t *testing.T) {
	cases := map[string]string{
		"unknown kind": `
sensors:
  - {id: X1, kind: HUMIDITY, subsystem: ENGINE, unit: pct, interval: 1s}
`,
		"unknown subsystem": `
sensors:
  - {id: X1, kind: PRESSURE, subsystem: STAGE9, unit: bar, interval: 1s}
`,
		"bad interval": `
sensors:
  - {id: X1, kind: PRESSURE, subsystem: ENGINE, unit: bar, interval: soon}
`,
		"unknown field": `
sensors:
  - {id: X1, kind: PRESSURE, subsystem: ENGINE, unit: bar, interval: 1s, colour: red}
`,
		"negative delta": `
sensors:
  - {id: X1, kind: PRESSURE, subsystem: ENGINE, unit: bar, interval: 1s, delta: -1}
`,
		"missing unit": `
sensors:
  - {id: X1, kind: PRESSURE, subsystem: ENGINE, interval: 1s}
`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseCatalog(name+".yaml", []byte(doc)); err == nil {
				t.Fatal("expected schema error")
			}
		})
	}
}

func TestParseCatalogSemanticErrors(t *testing.T) {
	dup := `
sensors:
  - {id: X1, kind: PRESSURE, subsystem: ENGINE, unit: bar, interval: 1s}
  - {id: X1, kind: PRESSURE, subsystem: ENGINE, unit: bar, interval: 2s}
`
	if _, err := ParseCatalog("dup.yaml", []byte(dup)); err == nil {
		t.Fatal("expected duplicate id error")
	}

	arity := `
sensors:
  - {id: V1, kind: VELOCITY, subsystem: STAGE2, unit: m/s, interval: 1s, initial: [1, 2]}
`
	if _, err := ParseCatalog("arity.yaml", []byte(arity)); err == nil {
		t.Fatal("expected initial arity error")
	}
}

func TestParseCatalogEmpty(t *testing.T) {
	if _, err := ParseCatalog("empty.yaml", []byte("sensors: []\n")); !errors.Is(err, ErrNoSensors) {
		t.Fatalf("err=%v, want ErrNoSensors", err)
	}
}

func TestLoadCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensors.yaml")
	doc := "sensors:\n  - {id: P1, kind: PRESSURE, subsystem: FUEL_TANK, unit: bar, interval: 20ms}\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if len(c.Sensors) != 1 || c.Sensors[0].ID != "P1" {
		t.Fatalf("sensors=%+v", c.Sensors)
	}

	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
