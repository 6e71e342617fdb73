package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"

	"telemetry-sim/internal/sensor"
)

//go:embed sensors.cue
var catalogSchema string

//go:embed default_sensors.yaml
var defaultCatalog []byte

var ErrNoSensors = errors.New("sensor catalogue has no sensors")

// Catalog is the set of simulated sensors.
type Catalog struct {
	Seed    uint64        `yaml:"seed,omitempty"`
	Sensors []sensor.Spec `yaml:"sensors"`
}

// LoadCatalog reads path, or returns the built-in catalogue when path is
// empty.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read sensor catalogue: %w", err)
	}
	return ParseCatalog(path, data)
}

func DefaultCatalog() (Catalog, error) {
	return ParseCatalog("default_sensors.yaml", defaultCatalog)
}

// ParseCatalog checks data against the catalogue schema before decoding it.
func ParseCatalog(name string, data []byte) (Catalog, error) {
	if err := validateCatalog(name, data); err != nil {
		return Catalog{}, err
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("decode %s: %w", name, err)
	}
	if len(c.Sensors) == 0 {
		return Catalog{}, ErrNoSensors
	}
	seen := make(map[string]struct{}, len(c.Sensors))
	for _, s := range c.Sensors {
		if err := s.Validate(); err != nil {
			return Catalog{}, fmt.Errorf("%s: %w", name, err)
		}
		if _, dup := seen[s.ID]; dup {
			return Catalog{}, fmt.Errorf("%s: duplicate sensor id %q", name, s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return c, nil
}

func validateCatalog(name string, data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(catalogSchema, cue.Filename("sensors.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile catalogue schema: %w", err)
	}

	file, err := cueyaml.Extract(name, data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	value := ctx.BuildFile(file)
	if err := value.Err(); err != nil {
		return fmt.Errorf("build %s: %w", name, err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Catalog")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", name, err)
	}
	return nil
}
