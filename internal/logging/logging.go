// Package logging provides structured, leveled logging for pagestorm.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	// LogLevelDebug is for detailed debugging information.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is for general informational messages.
	LogLevelInfo
	// LogLevelWarn is for warning messages.
	LogLevelWarn
	// LogLevelError is for error messages.
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

// ParseLogLevel parses a string into a LogLevel.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Format selects the output encoding.
type Format string

// Output formats.
const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

// LoggerConfig configures the logger.
type LoggerConfig struct {
	// Level is the minimum log level to output.
	Level LogLevel
	// Output is where logs are written. Defaults to os.Stderr.
	Output io.Writer
	// Prefix is recorded as the "app" field on every message.
	Prefix string
	// Format selects JSON lines or human-readable console output.
	Format Format
}

// DefaultLoggerConfig returns the default logger configuration.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Level:  LogLevelInfo,
		Output: os.Stderr,
		Prefix: "pagestorm",
		Format: FormatConsole,
	}
}

// Logger wraps a zerolog logger with printf-style helpers.
// Derived loggers share the level and enable state of their root.
type Logger struct {
	state *state
	zl    zerolog.Logger
}

type state struct {
	mu       sync.RWMutex
	level    LogLevel
	disabled bool
}

// NewLogger creates a new logger with the given configuration.
func NewLogger(cfg LoggerConfig) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == FormatConsole {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "2006-01-02T15:04:05.000", NoColor: true}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if cfg.Prefix != "" {
		ctx = ctx.Str("app", cfg.Prefix)
	}
	return &Logger{
		state: &state{level: cfg.Level},
		zl:    ctx.Logger(),
	}
}

// NullLogger is a logger that discards all output.
var NullLogger = &Logger{state: &state{disabled: true}, zl: zerolog.Nop()}

// Nop returns a logger that discards all output.
func Nop() *Logger {
	return NullLogger
}

// WithField returns a new logger with the given field added.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{state: l.state, zl: l.zl.With().Interface(key, value).Logger()}
}

// WithFields returns a new logger with the given fields added.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	return &Logger{state: l.state, zl: l.zl.With().Fields(fields).Logger()}
}

// WithComponent returns a new logger with the component field set.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{state: l.state, zl: l.zl.With().Str("component", component).Logger()}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level LogLevel) {
	l.state.mu.Lock()
	defer l.state.mu.Unlock()
	l.state.level = level
}

// Level returns the minimum log level.
func (l *Logger) Level() LogLevel {
	l.state.mu.RLock()
	defer l.state.mu.RUnlock()
	return l.state.level
}

// Disable disables all logging.
func (l *Logger) Disable() {
	l.state.mu.Lock()
	defer l.state.mu.Unlock()
	l.state.disabled = true
}

// Enable enables logging.
func (l *Logger) Enable() {
	l.state.mu.Lock()
	defer l.state.mu.Unlock()
	l.state.disabled = false
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...any) {
	l.log(LogLevelDebug, nil, msg, args...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, args ...any) {
	l.log(LogLevelInfo, nil, msg, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...any) {
	l.log(LogLevelWarn, nil, msg, args...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...any) {
	l.log(LogLevelError, nil, msg, args...)
}

// Err logs err at error level with msg.
func (l *Logger) Err(err error, msg string, args ...any) {
	l.log(LogLevelError, err, msg, args...)
}

func (l *Logger) log(level LogLevel, err error, msg string, args ...any) {
	if l == nil || l.state == nil {
		return
	}
	l.state.mu.RLock()
	skip := l.state.disabled || level < l.state.level
	l.state.mu.RUnlock()
	if skip {
		return
	}

	ev := l.zl.WithLevel(level.zerolog())
	if err != nil {
		ev = ev.Err(err)
	}
	if len(args) > 0 {
		ev.Msgf(msg, args...)
		return
	}
	ev.Msg(msg)
}

var (
	defaultLogger     *Logger
	defaultLoggerOnce sync.Once
)

// Default returns the process-wide logger, creating it on first use.
func Default() *Logger {
	defaultLoggerOnce.Do(func() {
		if defaultLogger == nil {
			defaultLogger = NewLogger(DefaultLoggerConfig())
		}
	})
	return defaultLogger
}

// SetDefault replaces the process-wide logger.
// Should be called early in startup.
func SetDefault(l *Logger) {
	defaultLogger = l
}
