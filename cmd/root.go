// Package cmd implements the CLI command structure for searchpool.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/searchpool/searchpool-go/internal/config"
	"github.com/searchpool/searchpool-go/internal/executor"
	"github.com/searchpool/searchpool-go/internal/logging"
	"github.com/searchpool/searchpool-go/internal/pool"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Run executes the searchpool CLI.
func Run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("searchpool", flag.ContinueOnError)
	fs.Usage = func() {
		printUsage(fs, os.Stderr)
	}
	help := fs.Bool("help", false, "Show help")
	fs.BoolVar(help, "h", false, "Show help")
	showVersion := fs.Bool("version", false, "Show version")
	fs.BoolVar(showVersion, "v", false, "Show version")

	cfg, err := config.Load(fs, args)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *help {
		printUsage(fs, os.Stdout)
		return nil
	}
	if *showVersion {
		return versionCommand()
	}

	// Determine the subcommand; "serve" is the default.
	subcommand := "serve"
	remainingArgs := fs.Args()
	if len(remainingArgs) > 0 && !strings.HasPrefix(remainingArgs[0], "-") {
		subcommand = remainingArgs[0]
		remainingArgs = remainingArgs[1:]
	}

	switch subcommand {
	case "serve":
		return serveCommand(ctx, cfg, remainingArgs)
	case "run":
		return runCommand(ctx, cfg, remainingArgs)
	case "ask":
		return askCommand(ctx, cfg, remainingArgs)
	case "tui":
		return tuiCommand(ctx, cfg, remainingArgs)
	case "doctor":
		return doctorCommand(ctx, cfg, remainingArgs)
	case "config":
		fmt.Print(config.ExampleConfig())
		return nil
	case "tail":
		return tailCommand(cfg, remainingArgs)
	case "ls":
		return lsCommand(cfg, remainingArgs)
	case "version", "--version", "-v":
		return versionCommand()
	case "help", "--help", "-h":
		printUsage(fs, os.Stdout)
		return nil
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", subcommand)
		printUsage(fs, os.Stderr)
		return fmt.Errorf("unknown command: %s", subcommand)
	}
}

// consoleLogger builds the charmbracelet logger from config.
func consoleLogger(cfg *config.Config) *log.Logger {
	opts := executor.DefaultConsoleLogOptions()
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		opts.Level = lvl
	}
	if cfg.LogFormat == "json" {
		opts.Formatter = log.JSONFormatter
	}
	opts.ReportTimestamp = cfg.LogTimestamps
	return log.NewWithOptions(os.Stderr, log.Options{
		Level:           opts.Level,
		Formatter:       opts.Formatter,
		ReportTimestamp: opts.ReportTimestamp,
		Prefix:          opts.Prefix,
	})
}

// workerFactory builds the pool's worker factory from config.
func workerFactory(cfg *config.Config) pool.WorkerFactory {
	kind := executor.Kind(cfg.Executor.Kind)
	return func(id string) (executor.Executor, error) {
		return executor.New(kind, executorConfig(cfg, id))
	}
}

func executorConfig(cfg *config.Config, id string) executor.Config {
	return executor.Config{
		Name:             id,
		Model:            cfg.Executor.Model,
		Reasoning:        cfg.Executor.Reasoning,
		BaseURL:          cfg.Executor.BaseURL,
		MaxSearchResults: cfg.Executor.MaxSearchResults,
		Timeout:          executorTimeout(cfg),
	}
}

func executorTimeout(cfg *config.Config) time.Duration {
	if cfg.Executor.TimeoutSeconds > 0 {
		return time.Duration(cfg.Executor.TimeoutSeconds) * time.Second
	}
	return executor.DefaultTimeout
}

// initPool creates and initializes the configured pool.
func initPool(ctx context.Context, cfg *config.Config, logger *log.Logger) (*pool.Pool, error) {
	p := pool.New(cfg.Pool)
	capacity := cfg.PoolCapacity()
	if err := p.Initialize(ctx, capacity, workerFactory(cfg)); err != nil {
		return nil, err
	}
	logger.Info("pool initialized", "pool", p.Name(), "capacity", p.Capacity(), "executor", cfg.Executor.Kind)
	return p, nil
}

// openRunLog opens the per-run JSONL log. A nil return with nil error means
// logging to file is disabled.
func openRunLog(cfg *config.Config, logger *log.Logger) (*logging.RunLogger, executor.LogWriter) {
	runLog, err := logging.NewRunLogger(cfg.LogDir)
	if err != nil {
		logger.Warn("run log disabled", "err", err)
		return nil, nil
	}
	return runLog, executor.NewIOStreamLogWriter(runLog.Writer())
}

// batchLogWriter combines console and file writers for dispatcher events.
func batchLogWriter(logger *log.Logger, fileWriter executor.LogWriter) executor.LogWriter {
	console := executor.NewConsoleLogWriterWithLogger(logger)
	if fileWriter == nil {
		return console
	}
	return executor.NewMultiLogWriter(console, fileWriter)
}

// versionCommand prints version information.
func versionCommand() error {
	fmt.Printf("searchpool version %s\n", Version)
	return nil
}

// printUsage prints the usage message.
func printUsage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintln(w, "Searchpool - A fixed-capacity search-agent worker pool")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  searchpool [command] [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve            Serve the HTTP API (default command)")
	fmt.Fprintln(w, "  run [subtask...] Run one batch of subtasks and print the result")
	fmt.Fprintln(w, "  ask <question>   Plan subtasks for a question, run them, synthesize an answer")
	fmt.Fprintln(w, "  tui              Launch the pool dashboard")
	fmt.Fprintln(w, "  doctor           Check config, credentials, and pool wiring")
	fmt.Fprintln(w, "  config           Print an example configuration file")
	fmt.Fprintln(w, "  tail             Tail the latest run log")
	fmt.Fprintln(w, "  ls               List past run logs")
	fmt.Fprintln(w, "  version          Show version information")
	fmt.Fprintln(w, "  help             Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global Options:")
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run Options (use with 'run' command):")
	fmt.Fprintln(w, "  -f string")
	fmt.Fprintln(w, "        Read subtasks from a file, one per line")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  OPENAI_API_KEY    Model credentials for search executors and the manager")
	fmt.Fprintln(w, "  OPENAI_MODEL      Default model when not set in config")
	fmt.Fprintln(w, "  OPENAI_BASE_URL   Alternate model endpoint")
	fmt.Fprintln(w, "  SERPAPI_API_KEY   SerpAPI credentials for web search")
}
