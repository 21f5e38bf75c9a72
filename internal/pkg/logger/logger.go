// Package logger builds devrelay's own log outputs. The returned handler is the destination the
// capture session forwards to, so it must not be the handler of slog's default logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects level and destinations.
type Options struct {
	Level slog.Level
	// File, when set, receives a copy of every line and is rotated by size.
	File   string
	Stdout io.Writer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a text handler writing to stdout and the optional rotated file. Close the
// returned closer on shutdown.
func New(opts Options) (slog.Handler, io.Closer, error) {
	out := opts.Stdout
	if out == nil {
		out = os.Stdout
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, nil, err
		}
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     7, // days
		}
		out = io.MultiWriter(out, rotator)
		closer = rotator
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: opts.Level})
	return handler, closer, nil
}

// NewZapCore returns a console core for host code that logs through zap.
func NewZapCore(w io.Writer, level slog.Level) zapcore.Core {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewConsoleEncoder(encoderConfig)

	return zapcore.NewCore(encoder, zapcore.AddSync(w), zapLevel(level))
}

func zapLevel(level slog.Level) zapcore.Level {
	switch {
	case level < slog.LevelInfo:
		return zapcore.DebugLevel
	case level < slog.LevelWarn:
		return zapcore.InfoLevel
	case level < slog.LevelError:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}
