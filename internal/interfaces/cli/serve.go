package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JohanRGustafsson/valuation-model/internal/app"
	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/monitoring/logging"
)

// NewServeCmd runs the HTTP server with the loaded configuration.
func NewServeCmd() *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web calculator and JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg := cliCtx.Config
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			logger, err := logging.NewLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var opts []app.Option
			if cliCtx.ConfigPath != "" {
				opts = append(opts, app.WithConfigPath(cliCtx.ConfigPath))
			}
			a, err := app.New(ctx, cfg, logger, Version, opts...)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.Background()) }()

			logger.Info("starting valuation server",
				logging.String("version", Version),
				logging.String("addr", cfg.Server.Addr()),
				logging.String("session_store", cfg.Session.Store))
			return a.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides config)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides config)")
	return cmd
}
