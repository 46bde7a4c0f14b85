// Package logger provides structured logging for regiontrace.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus logger
type Logger struct {
	log *logrus.Logger
}

// Entry wraps logrus entry for method chaining
type Entry struct {
	entry *logrus.Entry
}

// New creates a text logger writing to output (stderr when nil)
func New(level string, output io.Writer) *Logger {
	return NewWithFormat(level, "text", output)
}

// NewWithFormat creates a logger using the "text" or "json" formatter.
// Unknown formats fall back to text.
func NewWithFormat(level, format string, output io.Writer) *Logger {
	if output == nil {
		output = os.Stderr
	}

	log := logrus.New()
	log.SetOutput(output)

	logLevel, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	log.SetLevel(logLevel)

	if strings.EqualFold(format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{
			DisableTimestamp: true,
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			ForceColors:      true,
			DisableTimestamp: true,
			PadLevelText:     true,
		})
	}

	return &Logger{log: log}
}

// Enabled reports whether messages at level would be written
func (l *Logger) Enabled(level string) bool {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return false
	}
	return l.log.IsLevelEnabled(lvl)
}

// Debug logs a debug message
func (l *Logger) Debug() *Entry {
	return &Entry{entry: logrus.NewEntry(l.log).WithField("level", "debug")}
}

// Info logs an info message
func (l *Logger) Info() *Entry {
	return &Entry{entry: logrus.NewEntry(l.log).WithField("level", "info")}
}

// Warn logs a warning message
func (l *Logger) Warn() *Entry {
	return &Entry{entry: logrus.NewEntry(l.log).WithField("level", "warn")}
}

// Error logs an error message
func (l *Logger) Error() *Entry {
	return &Entry{entry: logrus.NewEntry(l.log).WithField("level", "error")}
}

// RegionHook adapts the logger to the registry debug hook signature.
func (l *Logger) RegionHook() func(msg string, fields map[string]any) {
	return func(msg string, fields map[string]any) {
		l.Debug().Fields(fields).Msg(msg)
	}
}

// Str adds a string field
func (e *Entry) Str(key, value string) *Entry {
	e.entry = e.entry.WithField(key, value)
	return e
}

// Int adds an int field
func (e *Entry) Int(key string, value int) *Entry {
	e.entry = e.entry.WithField(key, value)
	return e
}

// Uint64 adds an unsigned field
func (e *Entry) Uint64(key string, value uint64) *Entry {
	e.entry = e.entry.WithField(key, value)
	return e
}

// Bool adds a bool field
func (e *Entry) Bool(key string, value bool) *Entry {
	e.entry = e.entry.WithField(key, value)
	return e
}

// Fields adds every entry of fields. The "level" key is reserved and skipped.
func (e *Entry) Fields(fields map[string]any) *Entry {
	for k, v := range fields {
		if k == "level" {
			continue
		}
		e.entry = e.entry.WithField(k, v)
	}
	return e
}

// Err adds an error field
func (e *Entry) Err(err error) *Entry {
	if err != nil {
		e.entry = e.entry.WithError(err)
	}
	return e
}

// Dur adds a duration field (formatted in milliseconds)
func (e *Entry) Dur(key string, duration time.Duration) *Entry {
	ms := float64(duration.Microseconds()) / 1000.0
	e.entry = e.entry.WithField(key, ms)
	return e
}

// Float adds a float field
func (e *Entry) Float(key string, value float64) *Entry {
	e.entry = e.entry.WithField(key, value)
	return e
}

// Msg logs the message with accumulated fields
func (e *Entry) Msg(msg string) {
	level := e.entry.Data["level"]
	delete(e.entry.Data, "level")

	switch level {
	case "debug":
		e.entry.Debug(msg)
	case "info":
		e.entry.Info(msg)
	case "warn":
		e.entry.Warn(msg)
	case "error":
		e.entry.Error(msg)
	default:
		e.entry.Info(msg)
	}
}
