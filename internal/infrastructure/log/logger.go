package log

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/okieraised/perceptor-bringup/internal/config"
	"github.com/spf13/viper"
	"go.elastic.co/ecszap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	*zap.Logger
}

var (
	defaultMu     sync.RWMutex
	defaultOnce   sync.Once
	defaultLogger *zap.Logger
	defaultErr    error
)

// ParseLevel maps a textual level onto a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	case "fatal":
		return zap.FatalLevel
	case "panic":
		return zap.PanicLevel
	default:
		return zap.InfoLevel
	}
}

// DefaultConfig returns a zap.Config configured with ECS-compatible encoders.
// bringup.log_format=console switches to a human readable encoder for the CLI.
func DefaultConfig() zap.Config {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig = ecszap.ECSCompatibleEncoderConfig(cfg.EncoderConfig)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(viper.GetString(config.BringupLogLevel)))
	if viper.GetString(config.BringupLogFormat) == "console" {
		cfg.Encoding = "console"
		cfg.DisableStacktrace = true
		cfg.OutputPaths = []string{"stderr"}
	}
	return cfg
}

// InitDefault initializes the process-wide default logger once.
// Safe to call multiple times; only the first call wins.
func InitDefault(opts ...zap.Option) error {
	defaultOnce.Do(func() {
		cfg := DefaultConfig()
		l, err := cfg.Build(opts...)
		defaultMu.Lock()
		defaultLogger, defaultErr = l, err
		defaultMu.Unlock()
	})
	return defaultErr
}

// MustInitDefault is like InitDefault, but exits the process on failure.
func MustInitDefault(opts ...zap.Option) {
	if err := InitDefault(opts...); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to initialize default logger: %v\n", err)
		os.Exit(1)
	}
}

// ReplaceDefault swaps the default logger and returns a function restoring
// the previous one. Tests use it with an observer core.
func ReplaceDefault(l *zap.Logger) func() {
	_ = InitDefault()
	defaultMu.Lock()
	prev := defaultLogger
	defaultLogger = l
	defaultMu.Unlock()
	return func() {
		defaultMu.Lock()
		defaultLogger = prev
		defaultMu.Unlock()
	}
}

// Default returns the default logger, initializing it if needed.
func Default() *Logger {
	_ = InitDefault()
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	if defaultLogger == nil {
		return &Logger{zap.NewNop()}
	}
	return &Logger{defaultLogger}
}

// Sync flushes any buffered logs on the default logger.
func Sync() error {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	if defaultLogger != nil {
		return defaultLogger.Sync()
	}
	return nil
}

// NewECSLogger builds a new, independent ECS-compatible logger.
func NewECSLogger(opts ...zap.Option) (*Logger, error) {
	cfg := DefaultConfig()
	l, err := cfg.Build(opts...)
	if err != nil {
		return nil, err
	}
	return &Logger{l}, nil
}

// With returns a child logger from this logger with the given fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{l.Logger.With(fields...)}
}

// Named returns a child logger with the provided name.
func (l *Logger) Named(name string) *Logger {
	return &Logger{l.Logger.Named(name)}
}

// Sugar returns a sugared logger for this logger.
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.Logger.Sugar()
}

// WithString is a convenience for adding a single string field.
func (l *Logger) WithString(k, v string) *Logger {
	return l.With(zap.String(k, v))
}
