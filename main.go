package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Zhima-Mochi/sushistore/internal/config"
	infraobs "github.com/Zhima-Mochi/sushistore/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/sushistore/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/sushistore/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/sushistore/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/sushistore/internal/observability"
	"github.com/Zhima-Mochi/sushistore/internal/presentation/cli"
	httppresentation "github.com/Zhima-Mochi/sushistore/internal/presentation/http"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "sushistore:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logCfg := zaplogger.Config{Level: cfg.Log.Level, Output: cfg.Log.Output, File: cfg.Log.File}
	logger, err := zaplogger.New(logCfg,
		observability.F("service", cfg.App.Name),
		observability.F("env", cfg.App.Env),
	)
	if err != nil {
		return err
	}
	defer func() { _ = zaplogger.Sync(logger) }()

	tel := infraobs.New(
		oteltrace.New(cfg.App.Name),
		logger,
		prometrics.New(prometheus.DefaultRegisterer, "", ""),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.App.MetricsAddr != "" {
		metricsCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			_ = httppresentation.Serve(metricsCtx, cfg.App.MetricsAddr,
				httppresentation.Handler(prometheus.DefaultGatherer, tel), logger)
		}()
	}

	return cli.NewRootCommand(cli.Options{Config: cfg, Telemetry: tel}).ExecuteContext(ctx)
}
