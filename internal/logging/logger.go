// Package logging provides leveled structured logging with correlation
// IDs for tracing a request through the API and the graph runtime.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents a log level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a log level string. Unknown strings fall back to
// info rather than erroring; config validation catches typos earlier.
func ParseLevel(s string) Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// Logger is a leveled logger with attached fields. WithField returns
// derived loggers sharing the same output, so a component logger is
// cheap to hand around.
type Logger struct {
	mu     sync.Mutex
	output io.Writer
	level  Level
	json   bool
	fields map[string]interface{}
}

// entry is the JSON wire shape of one log line.
type entry struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Message   string                 `json:"msg"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

var defaultLogger = New()

// New creates a logger writing human-readable lines to stderr at info
// level. LOG_LEVEL and LOG_JSON environment variables adjust the
// defaults before configuration is loaded.
func New() *Logger {
	level := LevelInfo
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		level = ParseLevel(lvl)
	}
	return &Logger{
		output: os.Stderr,
		level:  level,
		json:   os.Getenv("LOG_JSON") == "true",
		fields: make(map[string]interface{}),
	}
}

// Default returns the process-wide logger.
func Default() *Logger {
	return defaultLogger
}

// SetOutput sets the output destination for the logger.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetJSON switches between JSON lines and the human-readable format.
func (l *Logger) SetJSON(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.json = enabled
}

// WithField returns a derived logger with the given field attached to
// every line it writes.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a derived logger with the given fields attached.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{
		output: l.output,
		level:  l.level,
		json:   l.json,
		fields: merged,
	}
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}

	if l.json {
		e := entry{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Level:     level.String(),
			Message:   msg,
		}
		if len(l.fields) > 0 {
			e.Fields = l.fields
		}
		data, err := json.Marshal(e)
		if err != nil {
			fmt.Fprintf(l.output, "ERROR: marshal log entry: %v\n", err)
			return
		}
		fmt.Fprintln(l.output, string(data))
		return
	}

	parts := []string{
		time.Now().Format("2006/01/02 15:04:05"),
		fmt.Sprintf("[%s]", level.String()),
		msg,
	}
	if len(l.fields) > 0 {
		keys := make([]string, 0, len(l.fields))
		for k := range l.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		kv := make([]string, 0, len(keys))
		for _, k := range keys {
			kv = append(kv, fmt.Sprintf("%s=%v", k, l.fields[k]))
		}
		parts = append(parts, fmt.Sprintf("{%s}", strings.Join(kv, ", ")))
	}
	fmt.Fprintln(l.output, strings.Join(parts, " "))
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

// Info logs an info message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

// WithCorrelationID returns a new context carrying the request's
// correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationID retrieves the correlation ID from a context, or ""
// when none was set.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}
