// Package logger writes leveled JSON log lines with PII redaction.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

// ParseLevel maps "debug", "info", "warn" and "error" to a Level.
// Unknown names yield INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	}
	return INFO
}

// Logger provides structured JSON logging with optional PII redaction.
type Logger struct {
	level     Level
	mu        sync.Mutex
	redactPII bool
	out       io.Writer
}

var defaultLogger = &Logger{level: INFO, redactPII: true, out: os.Stderr}

// SetLevel sets the minimum log level for the default logger.
func SetLevel(l Level) { defaultLogger.level = l }

// SetRedactPII enables or disables PII redaction for the default logger.
func SetRedactPII(r bool) { defaultLogger.redactPII = r }

// SetOutput redirects the default logger.
func SetOutput(w io.Writer) {
	defaultLogger.mu.Lock()
	defaultLogger.out = w
	defaultLogger.mu.Unlock()
}

// Debug emits a DEBUG-level structured log entry.
func Debug(msg string, fields ...interface{}) { defaultLogger.log(DEBUG, msg, fields...) }

// Info emits an INFO-level structured log entry.
func Info(msg string, fields ...interface{}) { defaultLogger.log(INFO, msg, fields...) }

// Warn emits a WARN-level structured log entry.
func Warn(msg string, fields ...interface{}) { defaultLogger.log(WARN, msg, fields...) }

// Error emits an ERROR-level structured log entry.
func Error(msg string, fields ...interface{}) { defaultLogger.log(ERROR, msg, fields...) }

// Entry is a set of fields bound to every line it logs.
type Entry struct {
	fields []interface{}
}

// With returns an Entry carrying the given key-value pairs, e.g.
// logger.With("component", "dispatch", "campaign_id", id).
func With(fields ...interface{}) *Entry {
	return &Entry{fields: fields}
}

// With returns a child Entry with additional fields.
func (e *Entry) With(fields ...interface{}) *Entry {
	return &Entry{fields: e.merge(fields)}
}

func (e *Entry) Debug(msg string, fields ...interface{}) {
	defaultLogger.log(DEBUG, msg, e.merge(fields)...)
}
func (e *Entry) Info(msg string, fields ...interface{}) {
	defaultLogger.log(INFO, msg, e.merge(fields)...)
}
func (e *Entry) Warn(msg string, fields ...interface{}) {
	defaultLogger.log(WARN, msg, e.merge(fields)...)
}
func (e *Entry) Error(msg string, fields ...interface{}) {
	defaultLogger.log(ERROR, msg, e.merge(fields)...)
}

func (e *Entry) merge(fields []interface{}) []interface{} {
	out := make([]interface{}, 0, len(e.fields)+len(fields))
	out = append(out, e.fields...)
	return append(out, fields...)
}

func (l *Logger) log(level Level, msg string, fields ...interface{}) {
	if level < l.level {
		return
	}

	entry := map[string]interface{}{
		"time":  time.Now().UTC().Format(time.RFC3339),
		"level": levelNames[level],
		"msg":   msg,
	}

	// Parse key-value pairs from fields
	for i := 0; i < len(fields)-1; i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		val := fmt.Sprintf("%v", fields[i+1])
		if l.redactPII {
			val = redactPIIValue(key, val)
		}
		entry[key] = val
	}

	data, _ := json.Marshal(entry)
	l.mu.Lock()
	fmt.Fprintln(l.out, string(data))
	l.mu.Unlock()
}
