// Package log provides structured logging for the LES peer engine. It wraps
// Go's log/slog with per-subsystem child loggers so that the peer state
// machine, the devp2p link and the header syncer each carry their own
// "module" attribute.
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with module and peer context helpers.
type Logger struct {
	inner *slog.Logger
}

var defaultLogger = New(slog.LevelInfo)

// New creates a Logger that writes JSON to stderr at the given level.
func New(level slog.Level) *Logger {
	return NewWithWriter(os.Stderr, level)
}

// NewWithWriter creates a JSON Logger writing to w.
func NewWithWriter(w io.Writer, level slog.Level) *Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{inner: slog.New(h)}
}

// NewWithHandler creates a Logger backed by the supplied slog.Handler.
func NewWithHandler(h slog.Handler) *Logger {
	return &Logger{inner: slog.New(h)}
}

// Discard returns a Logger that drops every record.
func Discard() *Logger {
	return NewWithHandler(slog.NewTextHandler(io.Discard, nil))
}

// SetDefault replaces the package-level default logger. Nil is ignored.
func SetDefault(l *Logger) {
	if l != nil {
		defaultLogger = l
	}
}

// Default returns the current package-level default logger.
func Default() *Logger {
	return defaultLogger
}

// Module returns a child logger tagged with the given subsystem name
// ("les", "link", "light", ...).
func (l *Logger) Module(name string) *Logger {
	return &Logger{inner: l.inner.With("module", name)}
}

// Peer returns a child logger tagged with a remote peer identifier.
func (l *Logger) Peer(id string) *Logger {
	return &Logger{inner: l.inner.With("peer", id)}
}

// With returns a child logger with additional key-value context.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{inner: l.inner.With(args...)}
}

// Slog exposes the underlying slog.Logger for libraries that want one.
func (l *Logger) Slog() *slog.Logger { return l.inner }

func (l *Logger) Debug(msg string, args ...any) { l.inner.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.inner.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.inner.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.inner.Error(msg, args...) }

// VerbosityToLevel maps the 0-5 command-line verbosity scale onto slog
// levels. 4 and above enable debug output.
func VerbosityToLevel(verbosity int) slog.Level {
	switch {
	case verbosity <= 1:
		return slog.LevelError
	case verbosity == 2:
		return slog.LevelWarn
	case verbosity == 3:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// Package-level helpers delegating to the default logger.

func Debug(msg string, args ...any) { defaultLogger.Debug(msg, args...) }
func Info(msg string, args ...any)  { defaultLogger.Info(msg, args...) }
func Warn(msg string, args ...any)  { defaultLogger.Warn(msg, args...) }
func Error(msg string, args ...any) { defaultLogger.Error(msg, args...) }
