// Package logging provides structured logging for the LiftLog core.
// All log output is JSON so host shells can forward it unchanged.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	// global logger instance
	global *logrus.Logger
	once   sync.Once
)

// Fields aliases logrus.Fields for call sites.
type Fields = logrus.Fields

// Init initializes the global logger. Unknown level strings fall back
// to info.
func Init(out io.Writer, level string) {
	once.Do(func() {
		global = logrus.New()
		global.SetOutput(out)
		global.SetFormatter(&logrus.JSONFormatter{})

		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			parsed = logrus.InfoLevel
		}
		global.SetLevel(parsed)
	})
}

// Get returns the global logger instance, initializing it with
// defaults when Init was never called.
func Get() *logrus.Logger {
	if global == nil {
		Init(os.Stdout, "info")
	}
	return global
}

// Debug logs a debug message.
func Debug(message string, fields Fields) {
	Get().WithFields(fields).Debug(message)
}

// Info logs an info message.
func Info(message string, fields Fields) {
	Get().WithFields(fields).Info(message)
}

// Warn logs a warning message.
func Warn(message string, fields Fields) {
	Get().WithFields(fields).Warn(message)
}

// Error logs an error message.
func Error(message string, err error, fields Fields) {
	entry := Get().WithFields(fields)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(message)
}
