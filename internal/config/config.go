package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const HardcodedVersion = "V0.1"

type Config struct {
	ListenAddr      string
	ServerAddr      string
	StatusAddr      string
	ProbeListenAddr string
	CORSOrigins     []string
	SensorsFile     string
	PollTimeout     time.Duration
	QueueCapacity   int
	MaxStreams      int
	ShutdownTimeout time.Duration
	HealthInterval  time.Duration
	WSWriteTimeout  time.Duration
	Seed            uint64
	ClientID        string
	Version         string
	LogJSON         bool
	LogLevel        string
	LogFile         string
}

// Load reads TELEMETRY_* variables. A .env file (TELEMETRY_ENV_FILE) is
// applied first when it exists; variables already set in the process win.
func Load() (Config, error) {
	envFile := env("TELEMETRY_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
	}

	cfg := Config{
		ListenAddr:      env("TELEMETRY_LISTEN_ADDR", "0.0.0.0:50051"),
		ServerAddr:      env("TELEMETRY_SERVER_ADDR", "localhost:50051"),
		StatusAddr:      env("TELEMETRY_STATUS_ADDR", "127.0.0.1:8080"),
		ProbeListenAddr: env("TELEMETRY_PROBE_ADDR", ""),
		CORSOrigins:     envList("TELEMETRY_CORS_ORIGINS", []string{"http://localhost:3000"}),
		SensorsFile:     env("TELEMETRY_SENSORS_FILE", ""),
		PollTimeout:     envDuration("TELEMETRY_POLL_TIMEOUT", 500*time.Millisecond),
		QueueCapacity:   envInt("TELEMETRY_QUEUE_CAPACITY", 0),
		MaxStreams:      envInt("TELEMETRY_MAX_STREAMS", 1),
		ShutdownTimeout: envDuration("TELEMETRY_SHUTDOWN_TIMEOUT", 5*time.Second),
		HealthInterval:  envDuration("TELEMETRY_HEALTH_INTERVAL", 10*time.Second),
		WSWriteTimeout:  envDuration("TELEMETRY_WS_WRITE_TIMEOUT", 5*time.Second),
		Seed:            envUint64("TELEMETRY_SEED", 0),
		ClientID:        env("TELEMETRY_CLIENT_ID", ""),
		Version:         HardcodedVersion,
		LogJSON:         envBool("TELEMETRY_LOG_JSON", false),
		LogLevel:        strings.ToLower(env("TELEMETRY_LOG_LEVEL", "info")),
		LogFile:         env("TELEMETRY_LOG_FILE", ""),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return errors.New("TELEMETRY_LISTEN_ADDR is required")
	}
	if strings.TrimSpace(c.ServerAddr) == "" {
		return errors.New("TELEMETRY_SERVER_ADDR is required")
	}
	if c.PollTimeout <= 0 {
		return errors.New("TELEMETRY_POLL_TIMEOUT must be > 0")
	}
	if c.QueueCapacity < 0 {
		return errors.New("TELEMETRY_QUEUE_CAPACITY must be >= 0")
	}
	if c.MaxStreams < 0 {
		return errors.New("TELEMETRY_MAX_STREAMS must be >= 0")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("TELEMETRY_SHUTDOWN_TIMEOUT must be > 0")
	}
	if c.HealthInterval <= 0 {
		return errors.New("TELEMETRY_HEALTH_INTERVAL must be > 0")
	}
	if c.WSWriteTimeout <= 0 {
		return errors.New("TELEMETRY_WS_WRITE_TIMEOUT must be > 0")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level %q", c.LogLevel)
	}
	return nil
}

func env(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envList(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envUint64(key string, fallback uint64) uint64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	u, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fallback
	}
	return u
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
