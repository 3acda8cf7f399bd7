package config

import (
	"os"
	"strconv"
)

// loadFromEnv overrides config from environment variables. Model and API
// credentials (OPENAI_API_KEY, OPENAI_MODEL, OPENAI_BASE_URL,
// SERPAPI_API_KEY) are read by the executor layer, not here.
func loadFromEnv(cfg *Config) {
	if v := os.Getenv("SEARCHPOOL_LOG_DIR"); v != "" {
		cfg.LogDir = v
	}
	if v := os.Getenv("SEARCHPOOL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SEARCHPOOL_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("SEARCHPOOL_POOL"); v != "" {
		cfg.Pool = v
	}
	if v := os.Getenv("SEARCHPOOL_CAPACITY"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.CapacityOverride = i
		}
	}
	if v := os.Getenv("SEARCHPOOL_MAX_ATTEMPTS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.MaxAttempts = i
		}
	}
	if v := os.Getenv("SEARCHPOOL_RETRY_BACKOFF"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.RetryBackoffSeconds = i
		}
	}
	if v := os.Getenv("SEARCHPOOL_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("SEARCHPOOL_EXECUTOR"); v != "" {
		cfg.Executor.Kind = v
	}
	if v := os.Getenv("SEARCHPOOL_MODEL"); v != "" {
		cfg.Executor.Model = v
	}
}
