// Package capture intercepts log output emitted by the host process and reports every call as
// a domain.LogRecord, while still delivering the original output to its destination.
package capture

import (
	"errors"
	"io"
	"log"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/V4T54L/devrelay/internal/domain"
	"github.com/V4T54L/devrelay/internal/stack"
)

// ErrAlreadyInstalled is returned when a second session is installed in the same process.
var ErrAlreadyInstalled = errors.New("capture: a session is already installed")

var active atomic.Pointer[Session]

// Callback receives each captured record together with the raw stack of the logging call.
type Callback func(record domain.LogRecord, rawStack string)

// Option configures a Session.
type Option func(*Session)

// WithLevel sets the minimum level that is captured. The sink keeps its own level.
func WithLevel(level slog.Leveler) Option {
	return func(s *Session) { s.level = level }
}

// WithClock overrides the clock used for records that carry no timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Session owns the interception of process-wide logging. Construct it once at startup,
// Install it, and Uninstall it on shutdown.
type Session struct {
	sink  slog.Handler
	cb    Callback
	level slog.Leveler
	now   func() time.Time

	mu         sync.Mutex
	installed  bool
	prevLogger *slog.Logger
	prevWriter io.Writer
	prevFlags  int
	prevPrefix string
}

// NewSession creates a session that forwards output to sink and reports records to cb.
// sink must be a concrete handler, not the handler of slog's built-in default logger.
func NewSession(sink slog.Handler, cb Callback, opts ...Option) *Session {
	s := &Session{
		sink:  sink,
		cb:    cb,
		level: slog.LevelInfo,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Install makes the capturing handler the process default slog logger. Output of the standard
// library log package is routed through it as well.
func (s *Session) Install() error {
	if !active.CompareAndSwap(nil, s) {
		return ErrAlreadyInstalled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.prevLogger = slog.Default()
	s.prevWriter = log.Writer()
	s.prevFlags = log.Flags()
	s.prevPrefix = log.Prefix()

	slog.SetDefault(slog.New(s.Handler()))
	s.installed = true
	return nil
}

// Uninstall restores the logging setup that was active before Install.
func (s *Session) Uninstall() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.installed {
		return
	}
	slog.SetDefault(s.prevLogger)
	log.SetOutput(s.prevWriter)
	log.SetFlags(s.prevFlags)
	log.SetPrefix(s.prevPrefix)
	s.installed = false
	active.CompareAndSwap(s, nil)
}

// Installed reports whether the session is the active process-wide capture.
func (s *Session) Installed() bool {
	return active.Load() == s
}

// Sink returns a logger that writes to the original destination without being captured.
func (s *Session) Sink() *slog.Logger {
	return slog.New(s.sink)
}

// Handler returns a slog.Handler that tees records to the sink and the callback.
func (s *Session) Handler() slog.Handler {
	return &teeHandler{s: s, sink: s.sink, bound: map[string]any{}}
}

func (s *Session) captures(level slog.Level) bool {
	return level >= s.level.Level()
}

// emit builds a record and hands it to the callback. The stack is taken here, while the
// logging call is still on the goroutine's stack.
func (s *Session) emit(typ, tag string, args []any, at time.Time) {
	raw := stack.Trace(1)
	if at.IsZero() {
		at = s.now()
	}

	defer func() {
		if r := recover(); r != nil {
			s.Sink().Error("capture callback panicked", "component", "capture", "panic", r)
		}
	}()

	s.cb(domain.LogRecord{
		Type:  typ,
		Level: domain.LevelOf(typ),
		Tag:   tag,
		Date:  at,
		Args:  args,
	}, raw)
}

// typeFor maps a slog level onto a record type.
func typeFor(level slog.Level) string {
	switch {
	case level < slog.LevelDebug:
		return domain.TypeTrace
	case level < slog.LevelInfo:
		return domain.TypeDebug
	case level < slog.LevelWarn:
		return domain.TypeInfo
	case level < slog.LevelError:
		return domain.TypeWarn
	case level == slog.LevelError:
		return domain.TypeError
	default:
		return domain.TypeFatal
	}
}
