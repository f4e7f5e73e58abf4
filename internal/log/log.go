// Package log provides structured logging for robocar.
// It wraps zap's sugared logger with sensible defaults for production use.
package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.SugaredLogger
	once   sync.Once
)

// ParseLevel maps a level name to a zap level.
// Valid levels: "debug", "info", "warn", "error". Anything else is info.
func ParseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Init initializes the global logger with the specified level.
// Only the first call has any effect.
func Init(level string) {
	once.Do(func() {
		logger = build(ParseLevel(level), os.Getenv("GO_ENV") == "production")
	})
}

func build(lvl zapcore.Level, production bool) *zap.SugaredLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	// JSON in production, console text in development
	var enc zapcore.Encoder
	if production {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stdout), zap.NewAtomicLevelAt(lvl))
	return zap.New(core).Sugar()
}

// L returns the global logger instance.
// Without a prior Init it starts at info level.
func L() *zap.SugaredLogger {
	Init("info")
	return logger
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	L().Debugw(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	L().Infow(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	L().Warnw(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	L().Errorw(msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *zap.SugaredLogger {
	return L().With(args...)
}

// Sync flushes buffered entries. Call before exit.
func Sync() {
	_ = L().Sync()
}
