package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/searchpool/searchpool-go/internal/config"
	"github.com/searchpool/searchpool-go/internal/dispatch"
	"github.com/searchpool/searchpool-go/internal/executor"
	"github.com/searchpool/searchpool-go/internal/pool"
)

// doctorCommand checks config, credentials, and pool wiring.
func doctorCommand(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("searchpool doctor", flag.ContinueOnError)
	verbose := fs.Bool("v", false, "Verbose output")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if remaining := fs.Args(); len(remaining) > 0 {
		return fmt.Errorf("unexpected arguments: %v", remaining)
	}

	fmt.Println("Searchpool Doctor")
	fmt.Println("=================")
	fmt.Println()

	allOK := true

	// Check executor kind
	fmt.Printf("Executor kind: %s\n", cfg.Executor.Kind)
	if executor.IsRegistered(cfg.Executor.Kind) {
		fmt.Println("  ✅ OK")
	} else {
		fmt.Printf("  ❌ Unknown (expected %s)\n", strings.Join(executor.RegisteredKinds(), "|"))
		allOK = false
	}
	fmt.Println()

	// Check pool configuration
	fmt.Printf("Pool: %s\n", cfg.Pool)
	capacity := cfg.PoolCapacity()
	if capacity >= 1 {
		fmt.Printf("  ✅ Capacity: %d\n", capacity)
	} else {
		fmt.Printf("  ❌ Capacity: %d (expected at least 1)\n", capacity)
		allOK = false
	}
	if cfg.MaxAttempts >= 1 {
		fmt.Printf("  ✅ Max attempts: %d\n", cfg.MaxAttempts)
	} else {
		fmt.Printf("  ❌ Max attempts: %d (expected at least 1)\n", cfg.MaxAttempts)
		allOK = false
	}
	fmt.Println()

	// Check credentials
	fmt.Println("Credentials:")
	if os.Getenv("OPENAI_API_KEY") != "" {
		fmt.Println("  ✅ OPENAI_API_KEY is set")
	} else {
		fmt.Println("  ⚠️  OPENAI_API_KEY not set (search executors and ask will fail)")
	}
	if os.Getenv("SERPAPI_API_KEY") != "" {
		fmt.Println("  ✅ SERPAPI_API_KEY is set")
	} else {
		fmt.Println("  ⚠️  SERPAPI_API_KEY not set (web search will fail)")
	}
	fmt.Println()

	// Check log directory
	logDir := cfg.LogDir
	fmt.Printf("Log directory: %s\n", logDir)
	if err := checkWritableDir(logDir); err != nil {
		fmt.Printf("  ❌ Error: %v\n", err)
		allOK = false
	} else {
		fmt.Println("  ✅ OK")
	}
	fmt.Println()

	// Smoke-test claim, dispatch, and release with echo workers.
	fmt.Println("Pool wiring (echo smoke test):")
	if err := echoSmokeTest(ctx, *verbose); err != nil {
		fmt.Printf("  ❌ Error: %v\n", err)
		allOK = false
	} else {
		fmt.Println("  ✅ OK")
	}
	fmt.Println()

	if allOK {
		fmt.Println("✅ All checks passed!")
		return nil
	}
	fmt.Println("⚠️  Some checks failed. Searchpool may not function correctly.")
	return fmt.Errorf("doctor checks failed")
}

// checkWritableDir verifies the directory exists (creating it if needed) and
// accepts writes.
func checkWritableDir(dir string) error {
	if strings.HasPrefix(dir, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok\n"), 0o644); err != nil {
		return err
	}
	return os.Remove(probe)
}

// echoSmokeTest runs a two-subtask batch through a throwaway echo pool,
// exercising claim, dispatch, retry plumbing, and release end to end.
func echoSmokeTest(ctx context.Context, verbose bool) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	p := pool.New("doctor")
	factory := func(id string) (executor.Executor, error) {
		return executor.New(executor.KindEcho, executor.Config{Name: id})
	}
	if err := p.Initialize(ctx, 2, factory); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer p.Shutdown(context.WithoutCancel(ctx))

	d := dispatch.New(p, dispatch.Options{MaxAttempts: 1})
	result, err := d.Execute(ctx, []string{"ping one", "ping two"})
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	if len(result.Failed) > 0 {
		return fmt.Errorf("%d subtasks failed", len(result.Failed))
	}
	if p.Idle() != p.Capacity() {
		return fmt.Errorf("workers not released: %d idle of %d", p.Idle(), p.Capacity())
	}
	if verbose {
		for _, r := range result.Results {
			fmt.Printf("  %s -> %s\n", r.AgentID, r.Result)
		}
	}
	return nil
}
