package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"telemetry-sim/internal/app"
	"telemetry-sim/internal/config"
	"telemetry-sim/internal/logging"
)

var (
	serveListen     string
	serveStatus     string
	serveSensors    string
	serveSeed       uint64
	serveMaxStreams int
	serveQueueCap   int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sensor simulators and the telemetry stream server",
	Long:  "serve starts one simulator per catalogue sensor and streams their events to a subscriber until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("listen") {
			cfg.ListenAddr = serveListen
		}
		if flags.Changed("status-addr") {
			cfg.StatusAddr = serveStatus
		}
		if flags.Changed("sensors") {
			cfg.SensorsFile = serveSensors
		}
		if flags.Changed("seed") {
			cfg.Seed = serveSeed
		}
		if flags.Changed("max-streams") {
			cfg.MaxStreams = serveMaxStreams
		}
		if flags.Changed("queue-capacity") {
			cfg.QueueCapacity = serveQueueCap
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		catalog, err := config.LoadCatalog(cfg.SensorsFile)
		if err != nil {
			return err
		}

		logger, closer := logging.BuildLogger(cfg, cmd.OutOrStdout())
		defer closer.Close()

		a, err := app.New(cfg, catalog, logger)
		if err != nil {
			logger.Error("server initialization failed", "error", err)
			return fmt.Errorf("init server: %w", err)
		}
		if err := a.Run(cmd.Context()); err != nil {
			logger.Error("server runtime failed", "error", err)
			return err
		}
		return nil
	},
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveListen, "listen", "", "gRPC listen address (TELEMETRY_LISTEN_ADDR)")
	f.StringVar(&serveStatus, "status-addr", "", "HTTP status address, empty disables (TELEMETRY_STATUS_ADDR)")
	f.StringVar(&serveSensors, "sensors", "", "sensor catalogue YAML (TELEMETRY_SENSORS_FILE)")
	f.Uint64Var(&serveSeed, "seed", 0, "random seed, 0 picks one (TELEMETRY_SEED)")
	f.IntVar(&serveMaxStreams, "max-streams", 1, "concurrent subscribers, 0 for no limit (TELEMETRY_MAX_STREAMS)")
	f.IntVar(&serveQueueCap, "queue-capacity", 0, "queue bound with drop-oldest, 0 for unbounded (TELEMETRY_QUEUE_CAPACITY)")
}
