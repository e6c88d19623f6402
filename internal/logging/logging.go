// Package logging wraps zap for handyman.
//
// Startup and command-line code uses the printf-style helpers (Info, Warn, ...).
// The scheduling core receives the *zap.Logger returned by Logger and logs with
// named fields.
package logging

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	base   = zap.NewNop()
	sugar  = base.Sugar()
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	inited bool
)

// ParseLevel converts a level name such as "INFO" or "debug" into a zap level.
func ParseLevel(name string) (zapcore.Level, error) {
	if strings.TrimSpace(name) == "" {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return lvl, nil
}

// Init builds the process logger: JSON to stderr at the given level.
// Calling Init again only adjusts the level.
func Init(levelName string) error {
	lvl, err := ParseLevel(levelName)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	level.SetLevel(lvl)
	if inited {
		return nil
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.Sampling = nil
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	setLocked(logger)
	inited = true
	return nil
}

// SetLogger replaces the process logger. Tests use it with zaptest/observer.
func SetLogger(logger *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	setLocked(logger)
	inited = logger != nil
}

func setLocked(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	base = logger
	sugar = logger.WithOptions(zap.AddCallerSkip(1)).Sugar()
}

// Logger returns the structured logger handed to the scheduling core.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func sugared() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// Debug logs a formatted message at debug level.
func Debug(format string, args ...interface{}) {
	sugared().Debugf(format, args...)
}

// Info logs a formatted message at info level.
func Info(format string, args ...interface{}) {
	sugared().Infof(format, args...)
}

// Warn logs a formatted message at warn level.
func Warn(format string, args ...interface{}) {
	sugared().Warnf(format, args...)
}

// Error logs a formatted message at error level.
func Error(format string, args ...interface{}) {
	sugared().Errorf(format, args...)
}

// Sync flushes buffered log entries.
func Sync() {
	_ = Logger().Sync()
}
