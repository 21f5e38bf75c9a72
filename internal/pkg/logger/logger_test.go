package logger

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew_WritesStdoutAndFile(t *testing.T) {
	var stdout bytes.Buffer
	file := filepath.Join(t.TempDir(), "logs", "devrelay.log")

	handler, closer, err := New(Options{Level: slog.LevelDebug, File: file, Stdout: &stdout})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	slog.New(handler).Debug("journal replayed", "records", 3)
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	for _, want := range []string{"level=DEBUG", `msg="journal replayed"`, "records=3"} {
		if !strings.Contains(stdout.String(), want) {
			t.Errorf("stdout missing %q: %q", want, stdout.String())
		}
	}
	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "journal replayed") {
		t.Errorf("log file missing line: %q", data)
	}
}

func TestNew_Level(t *testing.T) {
	var stdout bytes.Buffer
	handler, _, err := New(Options{Level: slog.LevelWarn, Stdout: &stdout})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if handler.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info must be disabled at warn level")
	}
}

func TestNewZapCore(t *testing.T) {
	var buf bytes.Buffer
	core := NewZapCore(&buf, slog.LevelInfo)

	if core.Enabled(zapcore.DebugLevel) {
		t.Error("debug must be disabled at info level")
	}
	zap.New(core).Named("db").Info("pool ready", zap.Int("size", 4))
	if out := buf.String(); !strings.Contains(out, "db") || !strings.Contains(out, "pool ready") {
		t.Errorf("unexpected zap output %q", out)
	}
}
