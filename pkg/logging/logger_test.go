package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		enable slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug},
		{"warn level", "warn", slog.LevelWarn},
		{"upper case", "ERROR", slog.LevelError},
		{"default info", "", slog.LevelInfo},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.level)
			if !logger.Enabled(ctx, tt.enable) {
				t.Fatalf("expected level %s to be enabled", tt.enable)
			}
		})
	}
}

func TestDefaultLogger(t *testing.T) {
	logger := Default()
	logger.Info("test message", "key", "value")

	ctx := context.Background()
	if !logger.Enabled(ctx, slog.LevelInfo) {
		t.Error("Default() should enable info level")
	}
	if logger.Enabled(ctx, slog.LevelDebug) {
		t.Error("Default() should not enable debug level (info is higher)")
	}

	if logger == Default() {
		t.Error("Default() returned the same instance twice - expected new instances")
	}
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info", "text")
	logger.Info("slots reconciled", "doctor_id", 7)

	out := buf.String()
	if !strings.Contains(out, "msg=\"slots reconciled\"") {
		t.Fatalf("expected text output, got %q", out)
	}
	if !strings.Contains(out, "doctor_id=7") {
		t.Fatalf("expected doctor_id attribute, got %q", out)
	}
}

func TestWithCarriesAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info", "json").With("component", "poller")
	logger.Info("tick")

	if !strings.Contains(buf.String(), `"component":"poller"`) {
		t.Fatalf("expected component attribute, got %q", buf.String())
	}
}

func TestDiscardDropsInfo(t *testing.T) {
	if Discard().Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("Discard() should not enable info")
	}
}
