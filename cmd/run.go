package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/searchpool/searchpool-go/internal/config"
	"github.com/searchpool/searchpool-go/internal/dispatch"
)

// runCommand executes one batch of subtasks and prints the aggregated result
// as JSON on stdout.
func runCommand(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fromFile := fs.String("f", "", "Read subtasks from a file, one per line")
	if err := fs.Parse(args); err != nil {
		return err
	}

	subtasks := fs.Args()
	if *fromFile != "" {
		fileTasks, err := readSubtasksFile(*fromFile)
		if err != nil {
			return err
		}
		subtasks = append(subtasks, fileTasks...)
	}
	if len(subtasks) == 0 {
		return fmt.Errorf("no subtasks given; pass them as arguments or with -f")
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

	result, err := d.Execute(ctx, subtasks)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	if len(result.Failed) > 0 {
		return fmt.Errorf("%d of %d subtasks failed", len(result.Failed), result.SubtasksCount)
	}
	return nil
}

// readSubtasksFile reads one subtask per line, skipping blanks and comments.
func readSubtasksFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening subtasks file: %w", err)
	}
	defer f.Close()

	var subtasks []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		subtasks = append(subtasks, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading subtasks file: %w", err)
	}
	return subtasks, nil
}
