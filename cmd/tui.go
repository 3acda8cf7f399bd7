package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/searchpool/searchpool-go/internal/config"
	"github.com/searchpool/searchpool-go/internal/dispatch"
	"github.com/searchpool/searchpool-go/internal/executor"
	"github.com/searchpool/searchpool-go/internal/ui"
)

// tuiCommand launches the pool dashboard. Any arguments are dispatched as a
// batch in the background so the dashboard has live activity to show.
func tuiCommand(ctx context.Context, cfg *config.Config, args []string) error {
	if !ui.IsTTY(os.Stdout) {
		return fmt.Errorf("tui requires an interactive terminal")
	}

	logger := consoleLogger(cfg)

	runLog, fileWriter := openRunLog(cfg, logger)
	if runLog != nil {
		defer runLog.Close()
	}

	// Console output would corrupt the alt screen; events flow to the
	// dashboard channel and the run log instead.
	events := ui.NewEventChannelWriter(64)
	var logw executor.LogWriter = events
	if fileWriter != nil {
		logw = executor.NewMultiLogWriter(events, fileWriter)
	}

	p, err := initPool(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing pool: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		_ = p.Shutdown(shutdownCtx)
	}()

	if len(args) > 0 {
		d := dispatch.New(p, dispatch.Options{
			MaxAttempts: cfg.MaxAttempts,
			Backoff:     time.Duration(cfg.RetryBackoffSeconds) * time.Second,
			LogWriter:   logw,
		})
		go func() {
			_, _ = d.Execute(ctx, args)
		}()
	}

	return ui.RunDashboard(ctx, p, events.Events())
}
