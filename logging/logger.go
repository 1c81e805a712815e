// Package logging provides a tiny abstraction over slog so downstream code can
// depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. It also offers a richer StructuredLogger with contextual
// helpers (agent, component) and domain specific logging helpers for actions,
// generations and shutdown steps.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel is a thin enum for user friendly level configuration decoupled from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a configuration string (debug, info, warn, error) to a
// LogLevel. Unknown values fall back to LogLevelInfo.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Logger defines the minimal logging interface used across the runtime.
// This allows users to provide their own logger implementation or use the built-in adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// StructuredLogger wraps slog.Logger adding contextual cloning helpers and
// domain convenience methods. It is cheap to copy via With* methods and
// satisfies Logger.
type StructuredLogger struct {
	logger    *slog.Logger
	level     LogLevel
	context   map[string]any
	component string
	agent     string
}

// LoggerConfig configures construction of a StructuredLogger.
type LoggerConfig struct {
	Level     LogLevel
	Format    string // json or text
	Output    io.Writer
	AddSource bool
	Component string
	Agent     string
}

// DefaultLoggerConfig returns a baseline JSON info level configuration.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "json", Output: os.Stderr}
}

// NewLogger builds a StructuredLogger from a config (or defaults if nil).
func NewLogger(cfg *LoggerConfig) *StructuredLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	return &StructuredLogger{
		logger:    slog.New(handler),
		level:     cfg.Level,
		context:   map[string]any{},
		component: cfg.Component,
		agent:     cfg.Agent,
	}
}

// New is a shorthand for building a StructuredLogger from the string based
// logging section of the project configuration.
func New(level, format string, out io.Writer) *StructuredLogger {
	cfg := DefaultLoggerConfig()
	cfg.Level = ParseLevel(level)

	if format != "" {
		cfg.Format = format
	}

	if out != nil {
		cfg.Output = out
	}

	return NewLogger(cfg)
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *StructuredLogger) clone() *StructuredLogger {
	nl := *l
	nl.context = make(map[string]any, len(l.context))
	for k, v := range l.context {
		nl.context[k] = v
	}
	return &nl
}

// WithContext adds a key/value attribute that will be attached to every log entry.
func (l *StructuredLogger) WithContext(key string, value any) *StructuredLogger {
	nl := l.clone()
	nl.context[key] = value
	return nl
}

// WithComponent sets the logical component (queue, dispatcher, shutdown, etc.).
func (l *StructuredLogger) WithComponent(c string) *StructuredLogger {
	nl := l.clone()
	nl.component = c
	return nl
}

// WithAgent attaches the agent name.
func (l *StructuredLogger) WithAgent(name string) *StructuredLogger {
	nl := l.clone()
	nl.agent = name
	return nl
}

func (l *StructuredLogger) buildAttrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, len(l.context)+2)
	if l.component != "" {
		attrs = append(attrs, slog.String("component", l.component))
	}
	if l.agent != "" {
		attrs = append(attrs, slog.String("agent", l.agent))
	}
	for k, v := range l.context {
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}

func (l *StructuredLogger) log(level slog.Level, allowed bool, msg string, args ...any) {
	if !allowed {
		return
	}
	attrs := l.buildAttrs()
	attrs = append(attrs, argsToAttrs(args)...)
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// argsToAttrs converts slog style alternating key/value arguments.
func argsToAttrs(args []any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(args)/2)
	for i := 0; i < len(args); i++ {
		switch a := args[i].(type) {
		case slog.Attr:
			attrs = append(attrs, a)
		case string:
			if i+1 >= len(args) {
				attrs = append(attrs, slog.String("!BADKEY", a))
				continue
			}
			attrs = append(attrs, slog.Any(a, args[i+1]))
			i++
		default:
			attrs = append(attrs, slog.Any("!BADKEY", a))
		}
	}
	return attrs
}

// Debug logs at debug level.
func (l *StructuredLogger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, l.level <= LogLevelDebug, msg, args...)
}

// Info logs at info level.
func (l *StructuredLogger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, l.level <= LogLevelInfo, msg, args...)
}

// Warn logs at warn level.
func (l *StructuredLogger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, l.level <= LogLevelWarn, msg, args...)
}

// Error logs at error level.
func (l *StructuredLogger) Error(msg string, args ...any) {
	l.log(slog.LevelError, l.level <= LogLevelError, msg, args...)
}

// LogActionCall records execution details for an action dispatch.
func (l *StructuredLogger) LogActionCall(action, mode string, attempts int, dur time.Duration, err error) {
	attrs := l.buildAttrs()
	attrs = append(attrs,
		slog.String("action", action),
		slog.String("mode", mode),
		slog.Int("attempts", attempts),
		slog.Duration("duration", dur),
		slog.Bool("success", err == nil),
	)
	level := slog.LevelInfo
	msg := "action.completed"
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		level = slog.LevelError
		msg = "action.failed"
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// LogGeneration records model call latency, round and success.
func (l *StructuredLogger) LogGeneration(model string, round int, dur time.Duration, err error) {
	attrs := l.buildAttrs()
	attrs = append(attrs,
		slog.String("model", model),
		slog.Int("round", round),
		slog.Duration("duration", dur),
		slog.Bool("success", err == nil),
	)
	level := slog.LevelInfo
	msg := "generation.completed"
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		level = slog.LevelError
		msg = "generation.failed"
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// LogExitStep records the settlement of a single shutdown step.
func (l *StructuredLogger) LogExitStep(step string, dur time.Duration, err error) {
	attrs := l.buildAttrs()
	attrs = append(attrs, slog.String("step", step), slog.Duration("duration", dur), slog.Bool("success", err == nil))
	level := slog.LevelInfo
	msg := "shutdown.step.settled"
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		level = slog.LevelWarn
		msg = "shutdown.step.failed"
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// StartTimer returns a closure that logs the elapsed duration of op when
// invoked.
func (l *StructuredLogger) StartTimer(op string) func() {
	start := time.Now()
	return func() { l.Info("operation.completed", "operation", op, "duration", time.Since(start)) }
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}

// OrNoOp returns l, or a NoOpLogger when l is nil.
func OrNoOp(l Logger) Logger {
	if l == nil {
		return NoOpLogger{}
	}
	return l
}
