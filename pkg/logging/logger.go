// Package logging implements structured logging for the container, one
// record per lifecycle transition and fan-out batch.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Level mirrors the teacher's five-level scheme, translated onto slog's
// levels (slog has no NOTICE, so it is folded onto Info+1).
type Level = slog.Level

const (
	LevelDebug  = slog.LevelDebug
	LevelInfo   = slog.LevelInfo
	LevelNotice = slog.Level(1)
	LevelWarn   = slog.LevelWarn
	LevelError  = slog.LevelError
)

// Config controls how a Logger renders records.
type Config struct {
	Level   Level
	Output  io.Writer
	AsText  bool // human-readable text handler instead of JSON
}

// DefaultConfig returns a JSON logger at Info level writing to stderr,
// matching the teacher's default of "log everything to stderr".
func DefaultConfig() Config {
	return Config{Level: LevelInfo, Output: os.Stderr}
}

// Logger wraps *slog.Logger with the container-specific convenience
// methods the controller and container call on every transition.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
}

// New creates a Logger from cfg.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	lv := &slog.LevelVar{}
	lv.Set(cfg.Level)
	opts := &slog.HandlerOptions{Level: lv}

	var handler slog.Handler
	if cfg.AsText {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}
	return &Logger{Logger: slog.New(handler), level: lv}
}

// Noop returns a Logger that discards everything, for tests that don't
// care about log output.
func Noop() *Logger {
	l := New(Config{Level: slog.LevelError + 1, Output: io.Discard})
	return l
}

// SetLevel changes the minimum logging level at runtime.
func (l *Logger) SetLevel(level Level) { l.level.Set(level) }

// WithContext returns a Logger sharing l's handler and level. ctx is not
// read: no attributes from it are added to subsequent log calls.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	return &Logger{Logger: l.Logger, level: l.level}
}

// Transition logs a single controller state change.
func (l *Logger) Transition(service, from, to string, correlationID string) {
	l.Debug("controller transition",
		"service", service, "from", from, "to", to, "correlation_id", correlationID)
}

// ServiceStarted logs a service reaching UP.
func (l *Logger) ServiceStarted(name, correlationID string) {
	l.Info("service started", "service", name, "correlation_id", correlationID)
}

// ServiceStopped logs a service reaching DOWN.
func (l *Logger) ServiceStopped(name, correlationID string) {
	l.Info("service stopped", "service", name, "correlation_id", correlationID)
}

// ServiceFailed logs a start failure.
func (l *Logger) ServiceFailed(name string, cause error, correlationID string) {
	l.Error("service failed to start", "service", name, "error", cause, "correlation_id", correlationID)
}

// FanOutBatch logs one line per dispatched fan-out task family (demand,
// dependent-span, or visibility) at debug level: which controller
// originated it, how many targets it walks, and the outcome it's
// asserting.
func (l *Logger) FanOutBatch(family, service string, size int, want bool, correlationID string) {
	l.Debug("fan-out batch dispatched",
		"family", family, "service", service, "size", size, "want", want, "correlation_id", correlationID)
}
