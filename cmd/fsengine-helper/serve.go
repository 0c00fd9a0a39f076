package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/fsengine/pkg/fsengine"
	"github.com/arthur-debert/fsengine/pkg/fsengine/helper"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve privileged file operations",
		Long: `Listen for engine connections on /ws and run the operations they delegate.
Prometheus metrics are served on /metrics and a liveness probe on /healthz.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := fsengine.LoggerFor(cmd.ErrOrStderr(), cfg.LogLevel)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := fsengine.Open(ctx, cfg, fsengine.WithLogger(logger), fsengine.WithoutHelper())
			if err != nil {
				return fmt.Errorf("failed to start engine: %w", err)
			}
			defer rt.Close()

			srv := helper.New(rt.Engine, rt.Metrics, logger)
			return srv.ListenAndServe(ctx, cfg.HelperListen)
		},
	}
}
