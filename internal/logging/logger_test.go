package logging_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reelcap/internal/logging"
	"reelcap/internal/services"
)

func newFileLogger(t *testing.T, format, level string) (string, func() string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "out.log")
	logger, err := logging.New(logging.Options{
		Format: format,
		Level:  level,
		File:   logPath,
		Quiet:  true,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.NewComponentLogger(logger, "session").Info("recording started",
		logging.ArtifactID("vid-1"),
		logging.String("mode", "screen"),
		logging.Error(errors.New("needs quoting here")),
	)
	return logPath, func() string {
		data, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatalf("read log file: %v", err)
		}
		return string(data)
	}
}

func TestRunLogPath(t *testing.T) {
	started := time.Date(2026, 3, 4, 5, 6, 7, 890_000_000, time.FixedZone("CET", 3600))
	got := logging.RunLogPath("/var/log/reelcap", started)
	want := "/var/log/reelcap/reelcap-20260304T040607.890Z.log"
	if got != want {
		t.Fatalf("RunLogPath = %q, want %q", got, want)
	}
}

func TestNewCreatesLogDirectory(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "logs", "run.log")
	logger, err := logging.New(logging.Options{File: logPath, Quiet: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hello")
	if _, err := os.Stat(logPath); err != nil {
		t.Fatalf("expected log file: %v", err)
	}
}

func TestConsoleFormatHoistsComponentAndArtifact(t *testing.T) {
	_, read := newFileLogger(t, "console", "info")
	line := read()
	if !strings.Contains(line, "INFO session [vid-1]: recording started") {
		t.Fatalf("unexpected console line %q", line)
	}
	if !strings.Contains(line, `error="needs quoting here"`) {
		t.Fatalf("expected quoted error, got %q", line)
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no source at info level, got %q", line)
	}
}

func TestJSONFormat(t *testing.T) {
	_, read := newFileLogger(t, "json", "info")
	var payload map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(read())), &payload); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if payload["level"] != "info" || payload["msg"] != "recording started" {
		t.Fatalf("unexpected payload %v", payload)
	}
	if payload[logging.FieldComponent] != "session" {
		t.Fatalf("expected component field, got %v", payload)
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", payload)
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "level.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "warn", File: logPath, Quiet: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("quiet")
	logging.WarnWithContext(logger, "loud", "device_removed")
	data, _ := os.ReadFile(logPath)
	text := string(data)
	if strings.Contains(text, "quiet") {
		t.Fatalf("info should be filtered, got %q", text)
	}
	for _, fragment := range []string{"loud", "event_type=device_removed", "error_hint=", "impact="} {
		if !strings.Contains(text, fragment) {
			t.Fatalf("expected %q in %q", fragment, text)
		}
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := services.WithArtifactID(context.Background(), "vid-9")
	ctx = services.WithRequestID(ctx, "req-1")
	fields := logging.ContextFields(ctx)
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}
	if logging.WithContext(context.Background(), nil) == nil {
		t.Fatal("expected logger")
	}
}
