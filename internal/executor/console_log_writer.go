// Package executor provides console logging with charmbracelet/log.
package executor

import (
	"os"

	"github.com/charmbracelet/log"
)

// ConsoleLogOptions holds configuration for console logging.
type ConsoleLogOptions struct {
	Level           log.Level
	Formatter       log.Formatter
	ReportTimestamp bool
	Prefix          string
}

// DefaultConsoleLogOptions returns default options for console logging.
func DefaultConsoleLogOptions() ConsoleLogOptions {
	return ConsoleLogOptions{
		Level:           log.InfoLevel,
		Formatter:       log.TextFormatter,
		ReportTimestamp: false,
		Prefix:          "searchpool",
	}
}

// ConsoleLogWriter implements LogWriter using charmbracelet/log for
// colorful, leveled, human-readable console output.
type ConsoleLogWriter struct {
	logger *log.Logger
}

// NewConsoleLogWriter creates a new console log writer with the given options.
func NewConsoleLogWriter(opts ConsoleLogOptions) *ConsoleLogWriter {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Level:           opts.Level,
		Formatter:       opts.Formatter,
		ReportTimestamp: opts.ReportTimestamp,
		Prefix:          opts.Prefix,
	})
	return &ConsoleLogWriter{logger: logger}
}

// NewConsoleLogWriterWithLogger creates a new console log writer with a
// custom logger. Useful for testing or redirecting output.
func NewConsoleLogWriterWithLogger(logger *log.Logger) *ConsoleLogWriter {
	return &ConsoleLogWriter{logger: logger}
}

// Write writes a log event to the console using charmbracelet/log.
func (c *ConsoleLogWriter) Write(event LogEvent) error {
	msg := event.Content
	if msg == "" {
		msg = event.Type
	}
	fields := extractFields(event)

	switch event.Type {
	case "error":
		c.logger.Error(msg, fields...)
	case "retry":
		c.logger.Warn(msg, fields...)
	case "batch", "result", "answer":
		c.logger.Info(msg, fields...)
	case "task", "search", "plan":
		c.logger.Debug(msg, fields...)
	default:
		c.logger.Debug(msg, fields...)
	}
	return nil
}

// extractFields extracts structured fields from a LogEvent for charmbracelet/log.
func extractFields(event LogEvent) []any {
	var fields []any
	if event.BatchID != "" {
		fields = append(fields, "batch", event.BatchID)
	}
	if event.AgentID != "" {
		fields = append(fields, "agent", event.AgentID)
	}
	if event.Subtask != "" {
		fields = append(fields, "subtask", truncate(event.Subtask, 100))
	}
	if event.Attempt > 0 {
		fields = append(fields, "attempt", event.Attempt)
	}
	if event.Elapsed > 0 {
		fields = append(fields, "elapsed", event.Elapsed)
	}
	if event.Count > 0 {
		fields = append(fields, "count", event.Count)
	}
	return fields
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
