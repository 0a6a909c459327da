// Package logger provides leveled structured logging.
package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var defaultLogger *zap.SugaredLogger

// Init initializes the default logger with the specified level and format.
// Format "json" selects the production encoder, "text" the console encoder.
func Init(level string, format string) {
	var cfg zap.Config
	if strings.ToLower(format) == "text" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		l = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(l)

	built, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		built = zap.NewNop()
	}
	defaultLogger = built.Sugar()
}

// Get returns the default logger, or a no-op logger before Init.
func Get() *zap.SugaredLogger {
	if defaultLogger == nil {
		return zap.NewNop().Sugar()
	}
	return defaultLogger
}

// Sync flushes buffered entries.
func Sync() {
	if defaultLogger != nil {
		_ = defaultLogger.Sync()
	}
}

func Debug(format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Debugf(format, args...)
	}
}

func Info(format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Infof(format, args...)
	}
}

func Warn(format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Warnf(format, args...)
	}
}

func Error(format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Errorf(format, args...)
	}
}

// Fatal logs and exits with status 1, even before Init.
func Fatal(format string, args ...interface{}) {
	if defaultLogger == nil {
		Init("info", "json")
	}
	defaultLogger.Fatalf(format, args...)
}
