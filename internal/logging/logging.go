// Package logging is fserve's structured logger. Messages carry a field map
// and are written through log/slog, either as human-readable lines or as
// JSON, optionally teed into a size-rotated log file.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"fserve/internal/slogutil"
)

// LogLevel represents the severity of a log message
type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

// Slog maps the level onto slog's scale. Unknown levels behave as info.
func (l LogLevel) Slog() slog.Level {
	return slogutil.LevelFromString(string(l))
}

// Format represents the output format for logs
type Format string

const (
	JSONFormat  Format = "json"
	HumanFormat Format = "human"
)

// ParseFormat accepts "json" and "human" (any case); anything else is human.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), string(JSONFormat)) {
		return JSONFormat
	}
	return HumanFormat
}

// Config holds logger configuration
type Config struct {
	Format Format
	Level  LogLevel
	Output io.Writer // Optional, defaults to stderr

	// File, when set, receives a copy of every record in the same format,
	// rotated once it reaches MaxSize (e.g. "10MB").
	File       string
	MaxSize    string
	MaxBackups int
}

// Logger provides structured logging
type Logger struct {
	config Config
	slog   *slog.Logger
	closer io.Closer
}

// NewLogger creates a logger for config. A log file that cannot be opened
// is reported on the primary output and otherwise ignored.
func NewLogger(config Config) *Logger {
	writer := config.Output
	if writer == nil {
		writer = os.Stderr
	}

	level := config.Level.Slog()
	handler := newHandler(config.Format, writer, level)

	var closer io.Closer
	var fileErr error
	if config.File != "" {
		rf, err := slogutil.OpenRotatingFile(config.File, slogutil.ParseSize(config.MaxSize), config.MaxBackups)
		if err != nil {
			fileErr = err
		} else {
			closer = rf
			handler = slogutil.NewTeeHandler(handler, newHandler(config.Format, rf, level))
		}
	}

	l := &Logger{config: config, slog: slog.New(handler), closer: closer}
	if fileErr != nil {
		l.Warn("Log file unavailable", map[string]interface{}{
			"path":  config.File,
			"error": fileErr.Error(),
		})
	}
	return l
}

// NewNopLogger returns a logger that writes nothing.
func NewNopLogger() *Logger {
	return &Logger{config: Config{Level: ErrorLevel}, slog: slogutil.NewDiscardLogger()}
}

func newHandler(format Format, w io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == JSONFormat {
		return slog.NewJSONHandler(w, opts)
	}
	return slogutil.NewLineHandler(w, opts)
}

// With returns a logger that adds fields to every message.
func (l *Logger) With(fields map[string]interface{}) *Logger {
	return &Logger{config: l.config, slog: l.slog.With(attrs(fields)...), closer: l.closer}
}

// Slog exposes the underlying slog.Logger.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func (l *Logger) shouldLog(level LogLevel) bool {
	return l.slog.Enabled(context.Background(), level.Slog())
}

func (l *Logger) log(level LogLevel, message string, fields map[string]interface{}) {
	if !l.shouldLog(level) {
		return
	}
	l.slog.Log(context.Background(), level.Slog(), message, attrs(fields)...)
}

// attrs flattens fields in key order so output is stable.
func attrs(fields map[string]interface{}) []any {
	if len(fields) == 0 {
		return nil
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]any, 0, len(keys))
	for _, k := range keys {
		v := fields[k]
		if err, ok := v.(error); ok {
			v = err.Error()
		} else if s, ok := v.(fmt.Stringer); ok {
			v = s.String()
		}
		out = append(out, slog.Any(k, v))
	}
	return out
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields map[string]interface{}) {
	l.log(DebugLevel, message, fields)
}

// Info logs an info message
func (l *Logger) Info(message string, fields map[string]interface{}) {
	l.log(InfoLevel, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields map[string]interface{}) {
	l.log(WarnLevel, message, fields)
}

// Error logs an error message
func (l *Logger) Error(message string, fields map[string]interface{}) {
	l.log(ErrorLevel, message, fields)
}
