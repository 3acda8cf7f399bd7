package executor

import (
	"context"
	"fmt"
	"sync/atomic"
)

// EchoExecutor answers every query with the query itself. It needs no
// credentials, which makes it useful for doctor checks and local smoke
// testing of the pool and dispatcher.
type EchoExecutor struct {
	cfg     Config
	started atomic.Bool
}

// NewEchoExecutor creates an echo executor.
func NewEchoExecutor(cfg Config) *EchoExecutor {
	return &EchoExecutor{cfg: cfg}
}

// Start marks the executor ready.
func (e *EchoExecutor) Start(ctx context.Context) error {
	e.started.Store(true)
	return nil
}

// Execute returns the query prefixed with the executor name.
func (e *EchoExecutor) Execute(ctx context.Context, query string) (string, error) {
	if !e.started.Load() {
		return "", &ExecutionError{Name: e.cfg.Name, Op: "execute", Err: fmt.Errorf("executor not started")}
	}
	if err := ctx.Err(); err != nil {
		return "", &ExecutionError{Name: e.cfg.Name, Op: "execute", Err: err}
	}
	return fmt.Sprintf("echo[%s]: %s", e.cfg.Name, query), nil
}

// Cleanup marks the executor stopped. Safe to call more than once.
func (e *EchoExecutor) Cleanup(ctx context.Context) error {
	e.started.Store(false)
	return nil
}
