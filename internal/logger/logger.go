// Package logger provides structured JSON logging and metrics tracking for
// club website checks.
//
// Log entries are written through log/slog JSON handlers. A logger can fan
// out to several destinations at once (stderr plus an optional log file),
// and child loggers carry fixed fields such as the run id.
//
// Metrics tracking includes counters (incrementing values), gauges
// (point-in-time values) and timings (duration measurements) with
// statistical aggregation in Snapshot.
//
// Example usage:
//
//	logger.Info("Region loaded", logger.Fields{
//	    "region": "skane.geojson",
//	    "clubs":  42,
//	})
//
//	logger.Error("Report write failed", logger.Fields{
//	    "path": "website_report.json",
//	}, err)
//
//	logger.IncrCounter("clubs.ok")
//	logger.RecordTiming("probe.duration", duration)
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// Level represents log severity
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var levelRank = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ParseLevel converts a case-insensitive level name into a Level.
func ParseLevel(s string) (Level, error) {
	lvl := Level(strings.ToUpper(strings.TrimSpace(s)))
	if lvl == "WARNING" {
		lvl = LevelWarn
	}
	if _, ok := levelRank[lvl]; !ok {
		return "", fmt.Errorf("unknown log level: %q", s)
	}
	return lvl, nil
}

func (lvl Level) slogLevel() slog.Level {
	switch lvl {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger provides structured logging
type Logger struct {
	minLevel Level
	handler  *slog.Logger
}

// Fields represents structured log fields
type Fields map[string]interface{}

var defaultLogger *Logger

func init() {
	defaultLogger = New(LevelInfo, os.Stderr)
}

// New creates a logger with the specified minimum level that writes one JSON
// object per line to every output. Messages below the minimum level are
// discarded. With no outputs the logger writes to stderr.
func New(level Level, outputs ...io.Writer) *Logger {
	if len(outputs) == 0 {
		outputs = []io.Writer{os.Stderr}
	}

	handlers := make([]slog.Handler, 0, len(outputs))
	for _, w := range outputs {
		handlers = append(handlers, slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}

	return &Logger{
		minLevel: level,
		handler:  slog.New(slogmulti.Fanout(handlers...)),
	}
}

// With returns a child logger that adds fields to every entry.
func (l *Logger) With(fields Fields) *Logger {
	args := make([]any, 0, len(fields))
	for _, attr := range toAttrs(fields) {
		args = append(args, attr)
	}
	return &Logger{
		minLevel: l.minLevel,
		handler:  l.handler.With(args...),
	}
}

// SetDefault sets the package-level logger used by Debug, Info, Warn and
// Error.
func SetDefault(logger *Logger) {
	defaultLogger = logger
}

// Default returns the package-level logger.
func Default() *Logger {
	return defaultLogger
}

// log writes a structured log entry
func (l *Logger) log(level Level, message string, fields Fields, err error) {
	if !l.shouldLog(level) {
		return
	}

	attrs := toAttrs(fields)
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}

	l.handler.LogAttrs(context.Background(), level.slogLevel(), message, attrs...)
}

// shouldLog determines if a message should be logged based on level
func (l *Logger) shouldLog(level Level) bool {
	return levelRank[level] >= levelRank[l.minLevel]
}

// toAttrs converts fields into slog attributes sorted by key, so entries
// render the same way on every run.
func toAttrs(fields Fields) []slog.Attr {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]slog.Attr, 0, len(keys)+1)
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	return attrs
}

// Debug logs a debug message with optional structured fields.
func (l *Logger) Debug(message string, fields Fields) {
	l.log(LevelDebug, message, fields, nil)
}

// Info logs an informational message with optional structured fields.
func (l *Logger) Info(message string, fields Fields) {
	l.log(LevelInfo, message, fields, nil)
}

// Warn logs a warning message with optional structured fields.
// Warnings cover problems that do not stop the run, such as a missing
// region file.
func (l *Logger) Warn(message string, fields Fields) {
	l.log(LevelWarn, message, fields, nil)
}

// Error logs an error message with optional structured fields and an error object.
func (l *Logger) Error(message string, fields Fields, err error) {
	l.log(LevelError, message, fields, err)
}

// Package-level convenience functions using default logger

// Debug logs a debug message with the default logger
func Debug(message string, fields Fields) {
	defaultLogger.Debug(message, fields)
}

// Info logs an info message with the default logger
func Info(message string, fields Fields) {
	defaultLogger.Info(message, fields)
}

// Warn logs a warning message with the default logger
func Warn(message string, fields Fields) {
	defaultLogger.Warn(message, fields)
}

// Error logs an error message with the default logger
func Error(message string, fields Fields, err error) {
	defaultLogger.Error(message, fields, err)
}
