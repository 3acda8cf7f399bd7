package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Load loads configuration from multiple sources in priority order:
// 1. Defaults
// 2. User config file (~/.searchpool/searchpool.toml or OS config dir)
// 3. Project config file (searchpool.toml or .searchpool.toml in cwd)
// 4. Environment variables
// 5. CLI flags
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}

	setDefaults(cfg)

	if userConfigFile := findUserConfigFile(); userConfigFile != "" {
		if err := loadConfigFile(cfg, userConfigFile); err != nil {
			return nil, fmt.Errorf("loading user config file %s: %w", userConfigFile, err)
		}
	}

	if projectConfigFile := findProjectConfigFile(); projectConfigFile != "" {
		if err := loadConfigFile(cfg, projectConfigFile); err != nil {
			return nil, fmt.Errorf("loading project config file %s: %w", projectConfigFile, err)
		}
	}

	loadFromEnv(cfg)

	if err := parseFlags(cfg, fs, args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.LogDir = DefaultLogDir
	cfg.LogLevel = DefaultLogLevel
	cfg.LogFormat = DefaultLogFormat
	cfg.MaxAttempts = DefaultMaxAttempts
	cfg.RetryBackoffSeconds = DefaultRetryBackoffSeconds
	cfg.Pool = DefaultPoolName
	cfg.Pools = DefaultPools()
	cfg.Executor.Kind = "search"
	cfg.Server.Addr = DefaultServerAddr
}

// findUserConfigFile locates the per-user config file, if any.
func findUserConfigFile() string {
	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".searchpool", "searchpool.toml")
		if fileExists(path) {
			return path
		}
	}
	if configDir, err := os.UserConfigDir(); err == nil {
		path := filepath.Join(configDir, "searchpool", "searchpool.toml")
		if fileExists(path) {
			return path
		}
	}
	return ""
}

// findProjectConfigFile locates a config file in the current directory.
func findProjectConfigFile() string {
	for _, name := range []string{"searchpool.toml", ".searchpool.toml"} {
		if fileExists(name) {
			return name
		}
	}
	return ""
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

func loadConfigFile(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return err
	}
	return nil
}

// parseFlags registers CLI flags on fs and parses args into cfg.
func parseFlags(cfg *Config, fs *flag.FlagSet, args []string) error {
	fs.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "Directory for JSONL run logs")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Console log level (debug|info|warn|error)")
	fs.StringVar(&cfg.Pool, "pool", cfg.Pool, "Named pool to serve (search|browser|code|filesystem|media)")
	fs.IntVar(&cfg.CapacityOverride, "capacity", cfg.CapacityOverride, "Pool capacity override (0 uses the pools table)")
	fs.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "Retry attempts per subtask")
	fs.IntVar(&cfg.RetryBackoffSeconds, "retry-backoff", cfg.RetryBackoffSeconds, "Seconds between retry attempts")
	fs.StringVar(&cfg.Server.Addr, "addr", cfg.Server.Addr, "HTTP listen address")
	fs.StringVar(&cfg.Executor.Kind, "executor", cfg.Executor.Kind, "Executor kind (search|echo)")
	fs.StringVar(&cfg.Executor.Model, "model", cfg.Executor.Model, "Model for search executors")

	return fs.Parse(args)
}

func validate(cfg *Config) error {
	if cfg.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", cfg.MaxAttempts)
	}
	if cfg.RetryBackoffSeconds < 0 {
		return fmt.Errorf("retry_backoff_seconds must not be negative, got %d", cfg.RetryBackoffSeconds)
	}
	if cfg.CapacityOverride < 0 {
		return fmt.Errorf("capacity must not be negative, got %d", cfg.CapacityOverride)
	}
	if cfg.Pool == "" {
		cfg.Pool = DefaultPoolName
	}
	return nil
}
