// Package config provides configuration loading and management.
package config

// ExampleConfig returns an example configuration showing all available options.
func ExampleConfig() string {
	return `# Searchpool configuration file
# Values can be overridden by environment variables or CLI flags

# Pool served by this process: search, browser, code, filesystem, media
pool = "search"

# Log directory for JSONL run logs (supports ~ expansion)
log_dir = "~/.searchpool"

# Console log level: debug, info, warn, error
log_level = "info"

# Console log format: text or json
log_format = "text"

# Retry attempts per subtask
max_attempts = 5

# Constant pause between retry attempts (seconds)
retry_backoff_seconds = 1

[pools.search]
capacity = 5

[pools.browser]
capacity = 5

[pools.code]
capacity = 2

[pools.filesystem]
capacity = 2

[pools.media]
capacity = 1

[executor]
# Executor kind: search or echo
kind = "search"
# model = "gpt-5-mini"
# reasoning = "low"
# max_search_results = 10
# timeout_seconds = 600

[server]
addr = ":8080"
`
}
