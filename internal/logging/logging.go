// Package logging provides a thin structured-logging wrapper around zap.
// Services log through this package instead of holding a logger dependency.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Fields is a map of contextual key/value pairs attached to a log entry.
type Fields map[string]interface{}

var logger *zap.Logger

func init() {
	logger = newLogger()
}

func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.TimeKey = "time"
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Fall back to a no-op logger rather than panic during init.
		return zap.NewNop()
	}
	return l
}

func zapFields(fields Fields) []zap.Field {
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	return zf
}

// Info logs a message at info level with optional fields.
func Info(msg string, fields ...Fields) {
	logger.Info(msg, collect(fields)...)
}

// Warn logs a message at warn level with optional fields.
func Warn(msg string, fields ...Fields) {
	logger.Warn(msg, collect(fields)...)
}

// Error logs a message at error level with optional fields.
func Error(msg string, fields ...Fields) {
	logger.Error(msg, collect(fields)...)
}

// Fatal logs a message at fatal level and exits.
func Fatal(msg string, fields ...Fields) {
	logger.Fatal(msg, collect(fields)...)
}

// Sync flushes buffered log entries. Call before process exit.
func Sync() {
	_ = logger.Sync()
}

func collect(fields []Fields) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	merged := Fields{}
	for _, f := range fields {
		for k, v := range f {
			merged[k] = v
		}
	}
	return zapFields(merged)
}
