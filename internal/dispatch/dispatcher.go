// Package dispatch coordinates batches of independent subtasks across a
// fixed pool of search workers.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/searchpool/searchpool-go/internal/executor"
	"github.com/searchpool/searchpool-go/internal/metrics"
	"github.com/searchpool/searchpool-go/internal/pool"
)

const (
	// DefaultMaxAttempts is the per-task retry budget.
	DefaultMaxAttempts = 5

	// DefaultBackoff is the constant wait between attempts. Constant, not
	// exponential: the pause exists to ride out transient upstream
	// hiccups, and the bounded attempt count is the termination
	// guarantee. Tune it via Options rather than changing the shape.
	DefaultBackoff = 1 * time.Second
)

// Options configures a Dispatcher.
type Options struct {
	// MaxAttempts is the per-task retry budget (default 5).
	MaxAttempts int

	// Backoff is the constant wait between attempts (default 1s).
	Backoff time.Duration

	// LogWriter receives batch and task events. May be nil.
	LogWriter executor.LogWriter

	// Metrics receives pool and task measurements. May be nil.
	Metrics *metrics.Metrics
}

// Dispatcher admits batches against a pool and runs each subtask on its own
// claimed worker with independent retry.
type Dispatcher struct {
	pool        *pool.Pool
	maxAttempts int
	backoff     time.Duration
	logw        executor.LogWriter
	met         *metrics.Metrics
}

// New creates a dispatcher over the given pool.
func New(p *pool.Pool, opts Options) *Dispatcher {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	return &Dispatcher{
		pool:        p,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
		logw:        executor.NormalizeLogWriter(opts.LogWriter),
		met:         opts.Metrics,
	}
}

// Execute runs one batch to completion. Admission failures (empty batch,
// batch larger than capacity, not enough idle workers) return an
// *AdmissionError with no workers touched. Once admitted, every subtask
// produces exactly one record in the result: individual task failures never
// fail the batch and never cancel their siblings.
func (d *Dispatcher) Execute(ctx context.Context, subtasks []string) (*Result, error) {
	capacity := d.pool.Capacity()

	if len(subtasks) == 0 {
		d.met.ObserveRejection(string(ReasonEmptyBatch))
		return nil, &AdmissionError{Reason: ReasonEmptyBatch, Capacity: capacity}
	}
	if len(subtasks) > capacity {
		d.met.ObserveRejection(string(ReasonExceedsCapacity))
		return nil, &AdmissionError{Reason: ReasonExceedsCapacity, Requested: len(subtasks), Capacity: capacity}
	}

	claimed := d.pool.ClaimIdle(len(subtasks))
	if len(claimed) < len(subtasks) {
		// All-or-nothing admission: return the short claim and shed the
		// batch instead of running it partially or queuing it.
		idle := len(claimed)
		d.pool.Release(claimed)
		d.met.ObserveRejection(string(ReasonInsufficientIdle))
		return nil, &AdmissionError{Reason: ReasonInsufficientIdle, Requested: len(subtasks), Capacity: capacity, Idle: idle}
	}
	defer d.pool.Release(claimed)
	d.met.SetBusyWorkers(capacity - d.pool.Idle())
	defer func() { d.met.SetBusyWorkers(capacity - d.pool.Idle()) }()

	batchID := uuid.NewString()
	batchStart := time.Now()
	d.log(executor.LogEvent{
		Type:    "batch",
		BatchID: batchID,
		Count:   len(subtasks),
		Content: "batch admitted",
	})

	outcomes := make([]taskOutcome, len(subtasks))
	var wg sync.WaitGroup
	for i, subtask := range subtasks {
		wg.Add(1)
		go func(idx int, w *pool.Worker, subtask string) {
			defer wg.Done()
			outcomes[idx] = d.runTask(ctx, batchID, w, subtask, idx)
		}(i, claimed[i], subtask)
	}
	wg.Wait()

	result := &Result{
		BatchID:       batchID,
		Results:       make([]Outcome, 0, len(subtasks)),
		Failed:        make([]Failure, 0),
		SubtasksCount: len(subtasks),
		AgentsUsed:    len(claimed),
		PoolSize:      capacity,
	}
	for _, o := range outcomes {
		if o.failure != nil {
			result.Failed = append(result.Failed, Failure{Index: o.failure.Index, Error: o.failure.Error()})
			continue
		}
		result.Results = append(result.Results, *o.outcome)
	}

	d.met.ObserveBatch(time.Since(batchStart).Seconds())
	d.log(executor.LogEvent{
		Type:    "batch",
		BatchID: batchID,
		Count:   len(subtasks),
		Elapsed: time.Since(batchStart).Seconds(),
		Content: "batch completed",
	})
	return result, nil
}

// taskOutcome holds exactly one of a success outcome or a fatal task error.
type taskOutcome struct {
	outcome *Outcome
	failure *TaskError
}

// attemptResult is the explicit per-attempt result; the retry loop branches
// on it rather than on panics or sentinel values.
type attemptResult struct {
	text string
	err  error
}

// runTask drives the bounded retry loop for one (worker, subtask) pair.
func (d *Dispatcher) runTask(ctx context.Context, batchID string, w *pool.Worker, subtask string, idx int) taskOutcome {
	start := time.Now()
	d.log(executor.LogEvent{
		Type:    "task",
		BatchID: batchID,
		AgentID: w.ID(),
		Subtask: subtask,
		Index:   idx,
		Content: "task started",
	})

	var last attemptResult
	attemptsMade := 0
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		attemptsMade = attempt
		text, err := w.RunOnce(ctx, subtask)
		last = attemptResult{text: text, err: err}
		if last.err == nil {
			elapsed := time.Since(start).Seconds()
			d.met.ObserveTask(true, elapsed)
			d.log(executor.LogEvent{
				Type:    "result",
				BatchID: batchID,
				AgentID: w.ID(),
				Subtask: subtask,
				Index:   idx,
				Elapsed: elapsed,
				Content: "task completed",
			})
			return taskOutcome{outcome: &Outcome{
				Index:   idx,
				Subtask: subtask,
				Result:  last.text,
				AgentID: w.ID(),
				Elapsed: round2(elapsed),
			}}
		}

		if attempt == d.maxAttempts || ctx.Err() != nil {
			break
		}
		d.met.IncRetry()
		d.log(executor.LogEvent{
			Type:    "retry",
			BatchID: batchID,
			AgentID: w.ID(),
			Subtask: subtask,
			Index:   idx,
			Attempt: attempt,
			Elapsed: time.Since(start).Seconds(),
			Content: last.err.Error(),
		})
		select {
		case <-time.After(d.backoff):
		case <-ctx.Done():
			// A cancelled batch still produces a record per task and
			// flows through the same release path.
			last = attemptResult{err: ctx.Err()}
		}
		if ctx.Err() != nil {
			break
		}
	}

	elapsed := time.Since(start).Seconds()
	failure := &TaskError{
		Index:    idx,
		Subtask:  subtask,
		AgentID:  w.ID(),
		Attempts: attemptsMade,
		Elapsed:  round2(elapsed),
		Err:      last.err,
	}
	d.met.ObserveTask(false, elapsed)
	d.log(executor.LogEvent{
		Type:    "error",
		BatchID: batchID,
		AgentID: w.ID(),
		Subtask: subtask,
		Index:   idx,
		Elapsed: elapsed,
		Content: failure.Error(),
	})
	return taskOutcome{failure: failure}
}

func (d *Dispatcher) log(event executor.LogEvent) {
	event.Timestamp = time.Now().UTC()
	_ = d.logw.Write(event)
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}
