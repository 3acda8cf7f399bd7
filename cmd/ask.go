package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/searchpool/searchpool-go/internal/config"
	"github.com/searchpool/searchpool-go/internal/dispatch"
	"github.com/searchpool/searchpool-go/internal/manager"
)

// askCommand plans subtasks for a question, runs them on the pool, and prints
// the synthesized answer.
func askCommand(ctx context.Context, cfg *config.Config, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("ask requires a question, e.g. searchpool ask \"compare X and Y\"")
	}

	logger := consoleLogger(cfg)

	runLog, fileWriter := openRunLog(cfg, logger)
	if runLog != nil {
		defer runLog.Close()
	}
	logw := batchLogWriter(logger, fileWriter)

	p, err := initPool(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing pool: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		_ = p.Shutdown(shutdownCtx)
	}()

	d := dispatch.New(p, dispatch.Options{
		MaxAttempts: cfg.MaxAttempts,
		Backoff:     time.Duration(cfg.RetryBackoffSeconds) * time.Second,
		LogWriter:   logw,
	})

	mgr, err := manager.New(d, manager.Options{
		Model:       cfg.Executor.Model,
		Reasoning:   cfg.Executor.Reasoning,
		BaseURL:     cfg.Executor.BaseURL,
		MaxSubtasks: p.Capacity(),
		LogWriter:   logw,
	})
	if err != nil {
		return err
	}

	answer, err := mgr.Ask(ctx, question)
	if err != nil {
		return err
	}

	fmt.Println(answer.Answer)
	if len(answer.Batch.Failed) > 0 {
		logger.Warn("some subtasks failed", "failed", len(answer.Batch.Failed), "total", answer.Batch.SubtasksCount)
	}
	return nil
}
