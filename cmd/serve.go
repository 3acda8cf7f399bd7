package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/searchpool/searchpool-go/internal/config"
	"github.com/searchpool/searchpool-go/internal/dispatch"
	"github.com/searchpool/searchpool-go/internal/manager"
	"github.com/searchpool/searchpool-go/internal/metrics"
	"github.com/searchpool/searchpool-go/internal/server"
)

// serveCommand runs the HTTP API until the context is cancelled.
func serveCommand(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("serve takes no arguments, got %q", args[0])
	}

	logger := consoleLogger(cfg)

	runLog, fileWriter := openRunLog(cfg, logger)
	if runLog != nil {
		defer runLog.Close()
		logger.Info("run log started", "path", runLog.LogPath)
	}
	logw := batchLogWriter(logger, fileWriter)

	p, err := initPool(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing pool: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := p.Shutdown(shutdownCtx); err != nil {
			logger.Warn("pool shutdown", "err", err)
		}
	}()

	registry := prometheus.NewRegistry()
	met := metrics.New(registry)
	met.SetPoolCapacity(p.Capacity())

	d := dispatch.New(p, dispatch.Options{
		MaxAttempts: cfg.MaxAttempts,
		Backoff:     time.Duration(cfg.RetryBackoffSeconds) * time.Second,
		LogWriter:   logw,
		Metrics:     met,
	})

	// The manager is optional: without model credentials the server still
	// dispatches pre-planned batches.
	var mgr *manager.Manager
	if os.Getenv("OPENAI_API_KEY") != "" {
		mgr, err = manager.New(d, manager.Options{
			Model:       cfg.Executor.Model,
			Reasoning:   cfg.Executor.Reasoning,
			BaseURL:     cfg.Executor.BaseURL,
			MaxSubtasks: p.Capacity(),
			LogWriter:   logw,
		})
		if err != nil {
			logger.Warn("manager disabled", "err", err)
		}
	} else {
		logger.Info("OPENAI_API_KEY not set, /v1/ask disabled")
	}

	srv, err := server.New(d, p, server.Options{
		Manager:  mgr,
		Registry: registry,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("building server: %w", err)
	}

	logger.Info("serving", "addr", cfg.Server.Addr, "pool", p.Name(), "capacity", p.Capacity())
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}
