package executor

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestIOStreamLogWriter_Write(t *testing.T) {
	t.Run("writes one JSON line per event", func(t *testing.T) {
		var buf bytes.Buffer
		writer := NewIOStreamLogWriter(&buf)

		event := LogEvent{
			Type:      "retry",
			Timestamp: time.Now().UTC(),
			BatchID:   "b-1",
			AgentID:   "search_agent_0",
			Subtask:   "find the answer",
			Attempt:   2,
			Content:   "upstream 500",
		}
		if err := writer.Write(event); err != nil {
			t.Fatalf("Write failed: %v", err)
		}

		line := buf.String()
		if !strings.HasSuffix(line, "\n") {
			t.Error("expected trailing newline")
		}

		var decoded map[string]any
		if err := json.Unmarshal([]byte(line), &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if decoded["type"] != "retry" {
			t.Errorf("expected type retry, got %v", decoded["type"])
		}
		if decoded["agent_id"] != "search_agent_0" {
			t.Errorf("expected agent_id, got %v", decoded["agent_id"])
		}
		if decoded["attempt"] != float64(2) {
			t.Errorf("expected attempt 2, got %v", decoded["attempt"])
		}
	})

	t.Run("omits empty fields", func(t *testing.T) {
		var buf bytes.Buffer
		writer := NewIOStreamLogWriter(&buf)

		if err := writer.Write(LogEvent{Type: "batch", Timestamp: time.Now()}); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		for _, key := range []string{"agent_id", "subtask", "attempt", "batch_id"} {
			if strings.Contains(buf.String(), key) {
				t.Errorf("expected %q to be omitted: %s", key, buf.String())
			}
		}
	})
}

// failingLogWriter always errors.
type failingLogWriter struct{}

func (failingLogWriter) Write(event LogEvent) error {
	return errors.New("disk full")
}

func TestMultiLogWriter_Write(t *testing.T) {
	t.Run("fans out to all writers", func(t *testing.T) {
		var a, b bytes.Buffer
		writer := NewMultiLogWriter(NewIOStreamLogWriter(&a), NewIOStreamLogWriter(&b))

		if err := writer.Write(LogEvent{Type: "batch", Timestamp: time.Now()}); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if a.Len() == 0 || b.Len() == 0 {
			t.Error("expected both writers to receive the event")
		}
	})

	t.Run("one failure does not stop the rest", func(t *testing.T) {
		var buf bytes.Buffer
		writer := NewMultiLogWriter(failingLogWriter{}, NewIOStreamLogWriter(&buf))

		err := writer.Write(LogEvent{Type: "batch", Timestamp: time.Now()})
		if err == nil {
			t.Error("expected aggregated error")
		}
		if buf.Len() == 0 {
			t.Error("healthy writer should still receive the event")
		}
	})
}

func TestNormalizeLogWriter(t *testing.T) {
	t.Run("nil becomes a no-op writer", func(t *testing.T) {
		writer := NormalizeLogWriter(nil)
		if err := writer.Write(LogEvent{Type: "batch"}); err != nil {
			t.Errorf("null writer must never fail: %v", err)
		}
	})

	t.Run("serializes concurrent writes", func(t *testing.T) {
		var buf bytes.Buffer
		writer := NormalizeLogWriter(NewIOStreamLogWriter(&buf))

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = writer.Write(LogEvent{Type: "task", Content: "concurrent"})
			}()
		}
		wg.Wait()

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 20 {
			t.Fatalf("expected 20 lines, got %d", len(lines))
		}
		for _, line := range lines {
			var decoded map[string]any
			if err := json.Unmarshal([]byte(line), &decoded); err != nil {
				t.Errorf("interleaved write produced invalid JSON: %v", err)
			}
		}
	})
}
