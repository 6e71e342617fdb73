package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"telemetry-sim/internal/logging"
	"telemetry-sim/internal/shutdown"
	"telemetry-sim/internal/stream"
)

var (
	watchServer   string
	watchClientID string
	watchJSON     bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Subscribe to a telemetry stream and print each event",
	Long:  "watch opens the telemetry stream and prints events until the server ends it or the process is interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("server") {
			cfg.ServerAddr = watchServer
		}
		if cmd.Flags().Changed("client-id") {
			cfg.ClientID = watchClientID
		}
		if cfg.ClientID == "" {
			cfg.ClientID = "watch-" + uuid.NewString()[:8]
		}

		// Events own stdout so --json output stays machine readable.
		logger, closer := logging.BuildLogger(cfg, cmd.ErrOrStderr())
		defer closer.Close()

		coord := shutdown.New(logger)
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		go coord.Listen(ctx, os.Interrupt, syscall.SIGTERM)

		// Stop cancels this context, which aborts a read blocked on the
		// server.
		streamCtx, release := coord.Attach(ctx)
		defer release()

		renderer := stream.NewRenderer(cmd.OutOrStdout(), watchJSON)
		res := stream.NewClient(cfg.ServerAddr, cfg.ClientID, logger).Watch(streamCtx, renderer.Render)
		logger.Debug("telemetry stream closed", "outcome", res.Outcome.String(), "received", res.Received)

		if res.Outcome == stream.ClientFailed {
			return errors.New(res.Summary())
		}
		fmt.Fprintln(cmd.ErrOrStderr(), res.Summary())
		return nil
	},
}

func init() {
	f := watchCmd.Flags()
	f.StringVar(&watchServer, "server", "", "server address (TELEMETRY_SERVER_ADDR)")
	f.StringVar(&watchClientID, "client-id", "", "client id sent with the subscribe request (TELEMETRY_CLIENT_ID)")
	f.BoolVar(&watchJSON, "json", false, "print events as JSON lines")
}
