// Package executor defines the search executor capability and its implementations.
package executor

import (
	"context"
	"fmt"
	"time"
)

// Kind identifies a registered executor implementation.
type Kind string

const (
	KindSearch Kind = "search"
	KindEcho   Kind = "echo"
)

// Factory creates an Executor from a Config.
type Factory func(cfg Config) (Executor, error)

const (
	// DefaultTimeout is the default timeout for a single execute call.
	// Search runs involve several model turns plus web lookups, so this
	// is generous; the per-task retry budget lives above this layer.
	DefaultTimeout = 10 * time.Minute

	// DefaultMaxTurns bounds the tool-calling loop inside a single run.
	DefaultMaxTurns = 12
)

// Executor is the capability contract for one stateless search worker.
// Start is called once before any Execute. Execute is safe to call
// repeatedly, but never concurrently on the same instance; the pool
// enforces that structurally. Cleanup is best-effort and idempotent.
type Executor interface {
	Start(ctx context.Context) error
	Execute(ctx context.Context, query string) (string, error)
	Cleanup(ctx context.Context) error
}

// Config holds configuration for an executor instance.
type Config struct {
	// Name identifies the instance (e.g. "search_agent_0").
	Name string

	// Model is the model to use for search runs.
	Model string

	// Reasoning is the reasoning effort passed to the model (e.g. "low").
	Reasoning string

	// APIKey overrides the OPENAI_API_KEY environment variable.
	APIKey string

	// BaseURL overrides the OPENAI_BASE_URL environment variable.
	BaseURL string

	// SerpAPIKey overrides the SERPAPI_API_KEY environment variable.
	SerpAPIKey string

	// MaxSearchResults is the number of organic results per web search.
	MaxSearchResults int

	// SystemMessage overrides the built-in search system prompt.
	SystemMessage string

	// Timeout is the maximum duration for a single execute call.
	// If zero, DefaultTimeout is used. Negative disables the timeout.
	Timeout time.Duration
}

// ExecutionError is a failed execute attempt on one executor.
type ExecutionError struct {
	Name string
	Op   string
	Err  error
}

func (e *ExecutionError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: %s: %v", e.Name, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func applyTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout < 0 {
		return context.WithCancel(ctx)
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
