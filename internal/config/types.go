// Package config handles configuration loading and defaults.
package config

// Default values.
const (
	DefaultLogDir              = "~/.searchpool"
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "text"
	DefaultMaxAttempts         = 5
	DefaultRetryBackoffSeconds = 1
	DefaultPoolName            = "search"
	DefaultServerAddr          = ":8080"

	// DefaultPoolCapacity applies to any pool name without an entry in
	// the pools table.
	DefaultPoolCapacity = 1
)

// DefaultPools returns the built-in capacity table per pool type.
func DefaultPools() PoolsConfig {
	return PoolsConfig{
		"search":     {Capacity: 5},
		"browser":    {Capacity: 5},
		"code":       {Capacity: 2},
		"filesystem": {Capacity: 2},
		"media":      {Capacity: 1},
	}
}

// Config holds the full configuration for searchpool.
type Config struct {
	// Logging
	LogDir        string `toml:"log_dir"`
	LogLevel      string `toml:"log_level"`
	LogFormat     string `toml:"log_format"`
	LogTimestamps bool   `toml:"log_timestamps"`

	// Retry policy for the dispatcher
	MaxAttempts         int `toml:"max_attempts"`
	RetryBackoffSeconds int `toml:"retry_backoff_seconds"`

	// Pool selects which pools entry the process serves.
	Pool string `toml:"pool"`

	// Pools maps pool names to their capacities.
	Pools PoolsConfig `toml:"pools"`

	// Executor configures the worker executors.
	Executor ExecutorConfig `toml:"executor"`

	// Server configures the HTTP API.
	Server ServerConfig `toml:"server"`

	// CapacityOverride, when non-zero, wins over the pools table.
	// Flag/env only, never persisted.
	CapacityOverride int `toml:"-"`
}

// PoolsConfig maps pool names to per-pool settings.
type PoolsConfig map[string]PoolConfig

// PoolConfig holds settings for a single named pool.
type PoolConfig struct {
	Capacity int `toml:"capacity"`
}

// Capacity returns the configured capacity for a pool name, falling back
// to DefaultPoolCapacity when the name has no entry.
func (pc PoolsConfig) Capacity(name string) int {
	if pc != nil {
		if p, ok := pc[name]; ok && p.Capacity > 0 {
			return p.Capacity
		}
	}
	return DefaultPoolCapacity
}

// ExecutorConfig holds configuration applied to every worker executor.
type ExecutorConfig struct {
	// Kind selects the executor implementation (default "search").
	Kind string `toml:"kind"`

	Model            string `toml:"model"`
	Reasoning        string `toml:"reasoning"`
	BaseURL          string `toml:"base_url"`
	MaxSearchResults int    `toml:"max_search_results"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// PoolCapacity resolves the capacity for the configured pool, honoring the
// flag/env override.
func (c *Config) PoolCapacity() int {
	if c.CapacityOverride > 0 {
		return c.CapacityOverride
	}
	return c.Pools.Capacity(c.Pool)
}
