package cmd

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/searchpool/searchpool-go/internal/config"
	"github.com/searchpool/searchpool-go/internal/logging"
)

// tailCommand tails the latest run log.
func tailCommand(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("searchpool tail", flag.ContinueOnError)
	follow := fs.Bool("f", false, "Follow the log (like tail -f)")
	fs.BoolVar(follow, "follow", false, "Follow the log (like tail -f)")
	n := fs.Int("n", 0, "Number of lines to show (0 = all)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	logPath, err := logging.FindLatestLog(cfg.LogDir)
	if err != nil {
		return fmt.Errorf("finding latest log: %w", err)
	}
	if logPath == "" {
		fmt.Println("No log files found.")
		return nil
	}

	fmt.Printf("Tailing: %s\n", logPath)
	if *follow {
		fmt.Println("(Ctrl+C to stop)")
	}
	fmt.Println()

	return logging.TailLog(os.Stdout, logPath, *n, *follow)
}

// lsCommand lists past run logs, newest first.
func lsCommand(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("searchpool ls", flag.ContinueOnError)
	limit := fs.Int("n", 0, "Show at most this many runs (0 = all)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	runs, err := logging.ListRuns(cfg.LogDir)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No run logs found.")
		return nil
	}
	if *limit > 0 && len(runs) > *limit {
		runs = runs[:*limit]
	}

	for _, run := range runs {
		fmt.Printf("%s  %s  %s\n",
			run.RunID,
			run.ModTime.Format(time.DateTime),
			humanSize(run.Size),
		)
	}
	return nil
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
