package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hylla/nudger/internal/config"
)

// TestRuntimeLoggerConsoleToggle verifies the console sink can be muted while the dashboard runs.
func TestRuntimeLoggerConsoleToggle(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newRuntimeLogger(&buf, "nudger", false, config.LoggingConfig{Level: "info"}, nil)
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	logger.Info("visible", "k", "v")
	logger.Debug("hidden below level")
	logger.SetConsoleEnabled(false)
	logger.Warn("muted")
	out := buf.String()
	if !strings.Contains(out, "visible") || strings.Contains(out, "hidden below level") || strings.Contains(out, "muted") {
		t.Fatalf("unexpected console output %q", out)
	}
	if logger.DevLogPath() != "" {
		t.Fatalf("expected no dev log outside dev mode, got %q", logger.DevLogPath())
	}
}

// TestRuntimeLoggerDevFile verifies dev mode appends logfmt lines to a dated file.
func TestRuntimeLoggerDevFile(t *testing.T) {
	dir := t.TempDir()
	now := func() time.Time { return time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC) }
	cfg := config.LoggingConfig{Level: "debug", DevFile: config.DevFileConfig{Enabled: true, Dir: dir}}
	logger, err := newRuntimeLogger(nil, "nudger", true, cfg, now)
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	logger.SetConsoleEnabled(false)
	logger.Info("cycle published", "cycle_id", "c1")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	want := filepath.Join(dir, "nudger-20261016.log")
	if logger.DevLogPath() != want {
		t.Fatalf("DevLogPath() = %q, want %q", logger.DevLogPath(), want)
	}
	content, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(content), "cycle_id=c1") {
		t.Fatalf("dev log missing fields: %q", content)
	}
}

func TestRuntimeLoggerRejectsBadLevel(t *testing.T) {
	if _, err := newRuntimeLogger(nil, "nudger", false, config.LoggingConfig{Level: "loud"}, nil); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestSanitizeLogFileStem(t *testing.T) {
	cases := map[string]string{
		"nudger":       "nudger",
		" my app/dev ": "my-app-dev",
		"":             "nudger",
	}
	for in, want := range cases {
		if got := sanitizeLogFileStem(in); got != want {
			t.Fatalf("sanitizeLogFileStem(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWorkspaceRootFrom(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module x\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if got := workspaceRootFrom(nested); got != root {
		t.Fatalf("workspaceRootFrom() = %q, want %q", got, root)
	}
}
