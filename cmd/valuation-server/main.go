// Command valuation-server serves the web calculator and the JSON API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/JohanRGustafsson/valuation-model/internal/app"
	"github.com/JohanRGustafsson/valuation-model/internal/config"
	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/monitoring/logging"
)

// Build-time variables injected via ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: environment and defaults only)")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	flag.Parse()

	if err := run(*configPath, *port); err != nil {
		fmt.Fprintf(os.Stderr, "valuation-server: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, port int) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Server.Port = port
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var opts []app.Option
	if configPath != "" {
		opts = append(opts, app.WithConfigPath(configPath))
	}
	a, err := app.New(ctx, cfg, logger, version, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	logger.Info("starting valuation server",
		logging.String("version", version),
		logging.String("addr", cfg.Server.Addr()),
		logging.String("session_store", cfg.Session.Store),
		logging.Bool("cache", cfg.Cache.Enabled),
		logging.Bool("tracing", cfg.Tracing.Enabled))

	if err := a.Run(ctx); err != nil {
		return err
	}
	logger.Info("valuation server stopped")
	return nil
}
