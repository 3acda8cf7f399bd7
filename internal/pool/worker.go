// Package pool owns a fixed set of search workers and the allocation gate
// through which batch capacity is claimed and released.
package pool

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/searchpool/searchpool-go/internal/executor"
)

// Worker wraps one executor with identity, busy state, and usage tracking.
// The executor is owned exclusively: only the goroutine that claimed the
// worker may call RunOnce, so no lock guards the executor itself. The busy
// flag is mutated only under the pool's gate.
type Worker struct {
	id        string
	exec      executor.Executor
	busy      bool
	createdAt time.Time

	// Usage counters are written by the claiming goroutine and read by
	// concurrent snapshots, hence atomics rather than the pool gate.
	taskCount atomic.Int64
	lastUsed  atomic.Int64 // unix nanos
}

func newWorker(id string, exec executor.Executor) *Worker {
	w := &Worker{
		id:        id,
		exec:      exec,
		createdAt: time.Now(),
	}
	w.lastUsed.Store(w.createdAt.UnixNano())
	return w
}

// ID returns the worker's stable identifier.
func (w *Worker) ID() string {
	return w.id
}

// TaskCount returns the number of tasks this worker has started.
func (w *Worker) TaskCount() int64 {
	return w.taskCount.Load()
}

// CreatedAt returns when the worker was created.
func (w *Worker) CreatedAt() time.Time {
	return w.createdAt
}

// LastUsed returns when the worker last started a task.
func (w *Worker) LastUsed() time.Time {
	return time.Unix(0, w.lastUsed.Load())
}

// RunOnce executes one subtask on the owned executor. Errors propagate to
// the caller unwrapped; retry policy lives in the dispatcher, not here.
func (w *Worker) RunOnce(ctx context.Context, subtask string) (string, error) {
	w.taskCount.Add(1)
	w.lastUsed.Store(time.Now().UnixNano())
	return w.exec.Execute(ctx, subtask)
}

func (w *Worker) cleanup(ctx context.Context) error {
	return w.exec.Cleanup(ctx)
}
