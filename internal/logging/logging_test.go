package logging

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewRunLogger(t *testing.T) {
	t.Run("creates directory and log file", func(t *testing.T) {
		baseDir := filepath.Join(t.TempDir(), "logs")

		logger, err := NewRunLogger(baseDir)
		if err != nil {
			t.Fatalf("NewRunLogger: %v", err)
		}
		defer logger.Close()

		if logger.RunID == "" {
			t.Error("expected a run id")
		}
		if !strings.HasSuffix(logger.LogPath, ".jsonl") {
			t.Errorf("expected .jsonl log path, got %s", logger.LogPath)
		}
		if _, err := os.Stat(logger.LogPath); err != nil {
			t.Errorf("log file missing: %v", err)
		}

		if _, err := fmt.Fprintln(logger.Writer(), `{"type":"batch"}`); err != nil {
			t.Errorf("write failed: %v", err)
		}
	})

	t.Run("rejects empty base dir", func(t *testing.T) {
		if _, err := NewRunLogger(""); err == nil {
			t.Error("expected error for empty base dir")
		}
	})

	t.Run("close on nil is safe", func(t *testing.T) {
		var logger *RunLogger
		if err := logger.Close(); err != nil {
			t.Errorf("Close on nil: %v", err)
		}
	})
}

func TestListRuns(t *testing.T) {
	t.Run("missing directory yields no runs", func(t *testing.T) {
		runs, err := ListRuns(filepath.Join(t.TempDir(), "nope"))
		if err != nil {
			t.Fatalf("ListRuns: %v", err)
		}
		if len(runs) != 0 {
			t.Errorf("expected no runs, got %d", len(runs))
		}
	})

	t.Run("lists jsonl files newest first", func(t *testing.T) {
		dir := t.TempDir()

		old := filepath.Join(dir, "20250101-000000-1.jsonl")
		recent := filepath.Join(dir, "20250601-000000-2.jsonl")
		if err := os.WriteFile(old, []byte("{}\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(recent, []byte("{}\n{}\n"), 0644); err != nil {
			t.Fatal(err)
		}
		// Directory listings sort by mtime, not name.
		past := time.Now().Add(-time.Hour)
		if err := os.Chtimes(old, past, past); err != nil {
			t.Fatal(err)
		}
		// Non-log files are ignored.
		if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}

		runs, err := ListRuns(dir)
		if err != nil {
			t.Fatalf("ListRuns: %v", err)
		}
		if len(runs) != 2 {
			t.Fatalf("expected 2 runs, got %d", len(runs))
		}
		if runs[0].RunID != "20250601-000000-2" {
			t.Errorf("expected newest first, got %s", runs[0].RunID)
		}
		if runs[1].RunID != "20250101-000000-1" {
			t.Errorf("expected oldest last, got %s", runs[1].RunID)
		}
		if runs[0].Size != 6 {
			t.Errorf("expected size 6, got %d", runs[0].Size)
		}
	})
}

func TestFindLatestLog(t *testing.T) {
	t.Run("empty directory yields empty path", func(t *testing.T) {
		path, err := FindLatestLog(t.TempDir())
		if err != nil {
			t.Fatalf("FindLatestLog: %v", err)
		}
		if path != "" {
			t.Errorf("expected empty path, got %s", path)
		}
	})

	t.Run("returns the newest log", func(t *testing.T) {
		dir := t.TempDir()
		old := filepath.Join(dir, "a.jsonl")
		recent := filepath.Join(dir, "b.jsonl")
		if err := os.WriteFile(old, []byte("{}\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(recent, []byte("{}\n"), 0644); err != nil {
			t.Fatal(err)
		}
		past := time.Now().Add(-time.Hour)
		if err := os.Chtimes(old, past, past); err != nil {
			t.Fatal(err)
		}

		path, err := FindLatestLog(dir)
		if err != nil {
			t.Fatalf("FindLatestLog: %v", err)
		}
		if path != recent {
			t.Errorf("expected %s, got %s", recent, path)
		}
	})
}

func TestTailLog(t *testing.T) {
	t.Run("copies the whole file without n", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "run.jsonl")
		content := "line one\nline two\nline three\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		var buf bytes.Buffer
		if err := TailLog(&buf, path, 0, false); err != nil {
			t.Fatalf("TailLog: %v", err)
		}
		if buf.String() != content {
			t.Errorf("got %q, want %q", buf.String(), content)
		}
	})

	t.Run("small file with n shows everything", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "run.jsonl")
		content := "alpha\nbeta\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		var buf bytes.Buffer
		if err := TailLog(&buf, path, 5, false); err != nil {
			t.Fatalf("TailLog: %v", err)
		}
		if buf.String() != content {
			t.Errorf("got %q, want %q", buf.String(), content)
		}
	})

	t.Run("large file with n skips the head", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "run.jsonl")
		var content strings.Builder
		for i := 0; i < 100; i++ {
			fmt.Fprintf(&content, "%04d %s\n", i, strings.Repeat("x", 120))
		}
		if err := os.WriteFile(path, []byte(content.String()), 0644); err != nil {
			t.Fatal(err)
		}

		var buf bytes.Buffer
		if err := TailLog(&buf, path, 3, false); err != nil {
			t.Fatalf("TailLog: %v", err)
		}
		out := buf.String()
		if strings.Contains(out, "0000 ") {
			t.Error("expected the head of the file to be skipped")
		}
		if !strings.Contains(out, "0099 ") {
			t.Error("expected the last line to be present")
		}
		// Seeking lands on a line boundary, never mid-line.
		if !strings.HasPrefix(out, "00") {
			t.Errorf("output starts mid-line: %q", out[:20])
		}
	})

	t.Run("missing file errors", func(t *testing.T) {
		var buf bytes.Buffer
		if err := TailLog(&buf, filepath.Join(t.TempDir(), "missing.jsonl"), 0, false); err == nil {
			t.Error("expected error for missing file")
		}
	})
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot get home directory")
	}

	tests := []struct {
		input string
		want  string
	}{
		{"~/logs", filepath.Join(home, "logs")},
		{"~", home},
		{"/absolute/path", "/absolute/path"},
		{"relative", "relative"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := expandHome(tt.input); got != tt.want {
				t.Errorf("expandHome(%q): got %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
