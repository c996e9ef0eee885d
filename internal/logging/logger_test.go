package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLoggerWritesJSONToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "run.log")

	logger, err := NewLogger(logPath, LevelInfo)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	logger.Info("task started", "task", "cover_art")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry); err != nil {
		t.Fatalf("log entry is not valid JSON: %v", err)
	}
	if entry["msg"] != "task started" {
		t.Errorf("msg = %v, want %q", entry["msg"], "task started")
	}
	if entry["task"] != "cover_art" {
		t.Errorf("task = %v, want %q", entry["task"], "cover_art")
	}
}

func TestChildLoggersCarryAttributes(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "run.log")

	logger, err := NewLogger(logPath, LevelDebug)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	child := logger.WithRun("run-1").WithTask("logo").WithBackend("gemini").WithAttempt(2)
	child.Debug("submitting prompt")

	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry); err != nil {
		t.Fatalf("log entry is not valid JSON: %v", err)
	}

	checks := map[string]any{
		"run_id":  "run-1",
		"task":    "logo",
		"backend": "gemini",
		"attempt": float64(2),
	}
	for key, want := range checks {
		if entry[key] != want {
			t.Errorf("entry[%q] = %v, want %v", key, entry[key], want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "run.log")

	logger, err := NewLogger(logPath, LevelWarn)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	logger.Info("should be filtered")
	logger.Warn("should appear")

	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	content := string(data)
	if strings.Contains(content, "should be filtered") {
		t.Error("INFO message should be filtered at WARN level")
	}
	if !strings.Contains(content, "should appear") {
		t.Error("WARN message should be logged at WARN level")
	}
}

func TestNopLoggerDoesNotPanic(t *testing.T) {
	logger := NopLogger()
	logger.WithTask("anything").Info("discarded")
	if err := logger.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
