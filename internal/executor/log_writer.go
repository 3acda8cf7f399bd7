package executor

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// LogEvent represents a single event from the pool, dispatcher, or an executor.
type LogEvent struct {
	// Type is the event type: batch, task, retry, result, error, search, plan, answer
	Type string `json:"type"`

	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`

	// Content is the human-readable message
	Content string `json:"content,omitempty"`

	// BatchID identifies the batch this event belongs to
	BatchID string `json:"batch_id,omitempty"`

	// AgentID is the worker that produced the event
	AgentID string `json:"agent_id,omitempty"`

	// Subtask is the task text (for task, retry, result, and error events)
	Subtask string `json:"subtask,omitempty"`

	// Index is the subtask's position in its batch
	Index int `json:"subtask_index,omitempty"`

	// Attempt is the attempt number (for retry events)
	Attempt int `json:"attempt,omitempty"`

	// Elapsed is wall-clock seconds since the first attempt started
	Elapsed float64 `json:"elapsed_seconds,omitempty"`

	// Count is the batch size (for batch events)
	Count int `json:"count,omitempty"`
}

// LogWriter writes log events.
type LogWriter interface {
	Write(event LogEvent) error
}

// IOStreamLogWriter writes log events as JSON lines to an io.Writer.
type IOStreamLogWriter struct {
	w io.Writer
}

// NewIOStreamLogWriter creates a new log writer that writes to an io.Writer.
func NewIOStreamLogWriter(w io.Writer) *IOStreamLogWriter {
	return &IOStreamLogWriter{w: w}
}

// Write writes a log event to the underlying writer.
func (l *IOStreamLogWriter) Write(event LogEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal log event: %w", err)
	}
	data = append(data, '\n')
	_, err = l.w.Write(data)
	return err
}

// MultiLogWriter writes to multiple log writers.
type MultiLogWriter struct {
	writers []LogWriter
}

// NewMultiLogWriter creates a new multi-log writer.
func NewMultiLogWriter(writers ...LogWriter) *MultiLogWriter {
	return &MultiLogWriter{writers: writers}
}

// Write writes the event to all underlying writers.
func (m *MultiLogWriter) Write(event LogEvent) error {
	var errs []error
	for _, w := range m.writers {
		if err := w.Write(event); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("multi-writer errors: %v", errs)
	}
	return nil
}

// NullLogWriter is a no-op log writer.
type NullLogWriter struct{}

// Write does nothing.
func (NullLogWriter) Write(event LogEvent) error {
	return nil
}

type lockedLogWriter struct {
	mu     sync.Mutex
	writer LogWriter
}

func (l *lockedLogWriter) Write(event LogEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writer.Write(event)
}

// NormalizeLogWriter returns a nil-safe, concurrency-safe log writer.
// Batch execution units write events from many goroutines at once.
func NormalizeLogWriter(writer LogWriter) LogWriter {
	if writer == nil {
		return NullLogWriter{}
	}
	return &lockedLogWriter{writer: writer}
}
