package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/searchpool/searchpool-go/internal/executor"
)

// WorkerFactory creates the executor for one capacity slot. The id is the
// worker's stable identifier (e.g. "search_agent_3").
type WorkerFactory func(id string) (executor.Executor, error)

// Pool is a fixed-capacity collection of workers. Capacity is set once by
// the first successful Initialize and never changes; claim and release are
// serialized through a single mutex whose critical sections never block on
// executor calls.
type Pool struct {
	name string

	// initMu serializes Initialize end to end, including executor starts.
	// The allocation gate mu is separate so claims stay O(capacity).
	initMu      sync.Mutex
	initialized bool

	mu      sync.Mutex
	workers []*Worker
}

// New creates an empty, uninitialized pool for the given pool name.
func New(name string) *Pool {
	return &Pool{name: name}
}

// Name returns the pool name (e.g. "search").
func (p *Pool) Name() string {
	return p.name
}

// Initialize creates capacity workers via factory and starts all of their
// executors concurrently. It is idempotent: once a call succeeds, later
// calls return nil immediately regardless of their arguments. If any
// executor fails to start, the pool stays uninitialized and the executors
// that did start are cleaned up.
func (p *Pool) Initialize(ctx context.Context, capacity int, factory WorkerFactory) error {
	p.initMu.Lock()
	defer p.initMu.Unlock()

	if p.initialized {
		return nil
	}
	if capacity < 1 {
		return fmt.Errorf("pool %q: capacity must be at least 1, got %d", p.name, capacity)
	}
	if factory == nil {
		return fmt.Errorf("pool %q: worker factory is nil", p.name)
	}

	ids := make([]string, capacity)
	execs := make([]executor.Executor, capacity)
	for i := 0; i < capacity; i++ {
		id := fmt.Sprintf("%s_agent_%d", p.name, i)
		exec, err := factory(id)
		if err != nil {
			return fmt.Errorf("pool %q: create worker %s: %w", p.name, id, err)
		}
		ids[i] = id
		execs[i] = exec
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range execs {
		exec, id := execs[i], ids[i]
		g.Go(func() error {
			if err := exec.Start(gctx); err != nil {
				return fmt.Errorf("start worker %s: %w", id, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Best-effort teardown of whatever started; cleanup errors
		// never mask the start failure.
		for _, exec := range execs {
			_ = exec.Cleanup(context.WithoutCancel(ctx))
		}
		return fmt.Errorf("pool %q: %w", p.name, err)
	}

	workers := make([]*Worker, capacity)
	for i := range execs {
		workers[i] = newWorker(ids[i], execs[i])
	}

	p.mu.Lock()
	p.workers = workers
	p.mu.Unlock()
	p.initialized = true
	return nil
}

// Initialized reports whether the pool has been successfully initialized.
func (p *Pool) Initialized() bool {
	p.initMu.Lock()
	defer p.initMu.Unlock()
	return p.initialized
}

// Capacity returns the fixed pool capacity (0 before initialization).
func (p *Pool) Capacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// Idle returns the number of workers not currently claimed.
func (p *Pool) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	idle := 0
	for _, w := range p.workers {
		if !w.busy {
			idle++
		}
	}
	return idle
}

// ClaimIdle selects up to n idle workers in creation order and marks them
// busy before returning. Scan and mark happen in one critical section, so
// no worker can be claimed twice. If fewer than n workers are idle, the
// short list is returned and the caller decides failure policy.
func (p *Pool) ClaimIdle(n int) []*Worker {
	if n <= 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	claimed := make([]*Worker, 0, n)
	for _, w := range p.workers {
		if w.busy {
			continue
		}
		w.busy = true
		claimed = append(claimed, w)
		if len(claimed) == n {
			break
		}
	}
	return claimed
}

// Release marks the given workers idle. It is invoked on every exit path of
// a batch, success or failure, so claimed capacity is never leaked.
func (p *Pool) Release(workers []*Worker) {
	if len(workers) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, w := range workers {
		w.busy = false
	}
}

// WorkerInfo is a point-in-time view of one worker for health and UI output.
type WorkerInfo struct {
	ID        string    `json:"id"`
	Busy      bool      `json:"busy"`
	TaskCount int64     `json:"task_count"`
	CreatedAt time.Time `json:"created_at"`
	LastUsed  time.Time `json:"last_used"`
}

// Snapshot returns the current state of every worker in creation order.
func (p *Pool) Snapshot() []WorkerInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	infos := make([]WorkerInfo, len(p.workers))
	for i, w := range p.workers {
		infos[i] = WorkerInfo{
			ID:        w.id,
			Busy:      w.busy,
			TaskCount: w.TaskCount(),
			CreatedAt: w.createdAt,
			LastUsed:  w.LastUsed(),
		}
	}
	return infos
}

// Shutdown cleans up every worker's executor. Cleanup is best-effort:
// failures are collected into the returned error but never interrupt the
// teardown of the remaining workers.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	workers := make([]*Worker, len(p.workers))
	copy(workers, p.workers)
	p.mu.Unlock()

	var errs []error
	for _, w := range workers {
		if err := w.cleanup(ctx); err != nil {
			errs = append(errs, fmt.Errorf("cleanup %s: %w", w.id, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("pool %q shutdown: %v", p.name, errs)
	}
	return nil
}
