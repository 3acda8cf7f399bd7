package dispatch

import (
	"fmt"
)

// AdmissionReason distinguishes the ways a batch can be rejected before any
// task starts.
type AdmissionReason string

const (
	// ReasonEmptyBatch: the request contained no subtasks.
	ReasonEmptyBatch AdmissionReason = "empty_batch"

	// ReasonExceedsCapacity: the request asked for more subtasks than the
	// pool can ever run at once.
	ReasonExceedsCapacity AdmissionReason = "exceeds_capacity"

	// ReasonInsufficientIdle: the pool could not supply enough idle
	// workers at claim time. The batch is rejected rather than queued;
	// load shedding here is deliberate.
	ReasonInsufficientIdle AdmissionReason = "insufficient_idle"
)

// AdmissionError rejects a whole batch during validation or allocation.
// No task has started when it is returned; the caller should resubmit a
// smaller batch or wait for idle capacity.
type AdmissionError struct {
	Reason    AdmissionReason
	Requested int
	Capacity  int
	Idle      int
}

func (e *AdmissionError) Error() string {
	switch e.Reason {
	case ReasonEmptyBatch:
		return "must provide at least 1 subtask"
	case ReasonExceedsCapacity:
		return fmt.Sprintf("too many subtasks (%d) for pool size (%d)", e.Requested, e.Capacity)
	case ReasonInsufficientIdle:
		return fmt.Sprintf("not enough agents: requested %d, available %d", e.Requested, e.Idle)
	default:
		return fmt.Sprintf("batch rejected: %s", e.Reason)
	}
}

// TaskError is a single task that exhausted every retry attempt. It lives
// only inside the batch result's failure records and never fails the batch.
type TaskError struct {
	Index    int
	Subtask  string
	AgentID  string
	Attempts int
	Elapsed  float64
	Err      error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf(
		"agent %s failed after %d attempts (took %.2fs)\nsubtask [%d]: %s\nerror: %v",
		e.AgentID, e.Attempts, e.Elapsed, e.Index, e.Subtask, e.Err,
	)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}
