package capture

import (
	"log/slog"

	"go.uber.org/zap/zapcore"
)

// ZapCore wraps core so that entries written through a zap logger are captured too.
// The wrapped core keeps its own level and encoder.
func (s *Session) ZapCore(core zapcore.Core) zapcore.Core {
	return &zapCore{Core: core, s: s}
}

type zapCore struct {
	zapcore.Core
	s      *Session
	fields []zapcore.Field
}

func (c *zapCore) Enabled(level zapcore.Level) bool {
	return c.Core.Enabled(level) || c.s.captures(zapToSlog(level))
}

func (c *zapCore) With(fields []zapcore.Field) zapcore.Core {
	return &zapCore{
		Core:   c.Core.With(fields),
		s:      c.s,
		fields: append(append([]zapcore.Field(nil), c.fields...), fields...),
	}
}

func (c *zapCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *zapCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	var err error
	if c.Core.Enabled(ent.Level) {
		err = c.Core.Write(ent, fields)
	}

	level := zapToSlog(ent.Level)
	if c.s.captures(level) {
		enc := zapcore.NewMapObjectEncoder()
		for _, f := range c.fields {
			f.AddTo(enc)
		}
		for _, f := range fields {
			f.AddTo(enc)
		}
		args := []any{ent.Message}
		if len(enc.Fields) > 0 {
			args = append(args, enc.Fields)
		}
		c.s.emit(typeFor(level), ent.LoggerName, args, ent.Time)
	}
	return err
}

func zapToSlog(level zapcore.Level) slog.Level {
	switch {
	case level < zapcore.InfoLevel:
		return slog.LevelDebug
	case level == zapcore.InfoLevel:
		return slog.LevelInfo
	case level == zapcore.WarnLevel:
		return slog.LevelWarn
	case level == zapcore.ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelError + 4
	}
}
