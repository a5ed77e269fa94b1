// Package logging builds the process-wide slog logger and adapts it to the
// types.Logger interface used by application code.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"buildnotify/internal/types"
)

// ParseLevel maps a LOG_LEVEL value to a slog level. Unknown values select
// info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a JSON logger writing to w at the given level. Every record
// carries the service name.
func New(w io.Writer, level, service string) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
	if service != "" {
		logger = logger.With("service", service)
	}
	return logger
}

// Adapter wraps *slog.Logger to implement types.Logger. slog.Logger has the
// Info, Warn and Error methods but its With returns *slog.Logger.
type Adapter struct {
	logger *slog.Logger
}

// NewAdapter wraps logger. A nil logger uses slog.Default().
func NewAdapter(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{logger: logger}
}

func (a *Adapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *Adapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *Adapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *Adapter) With(args ...any) types.Logger {
	return &Adapter{logger: a.logger.With(args...)}
}

// Slog returns the wrapped logger.
func (a *Adapter) Slog() *slog.Logger {
	return a.logger
}

var _ types.Logger = (*Adapter)(nil)
