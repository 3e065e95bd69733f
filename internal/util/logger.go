package util

import (
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
	"go.uber.org/zap"
)

// NewSlogBridge wraps a zap logger in a tinted slog handler for the
// libraries that only speak slog.
func NewSlogBridge(logger *zap.Logger) *slog.Logger {
	stdOutLogger := zap.NewStdLog(logger)

	var slogLevel slog.Level = slog.LevelInfo

	switch logger.Level() {
	case zap.DebugLevel:
		slogLevel = slog.LevelDebug
	case zap.InfoLevel:
		slogLevel = slog.LevelInfo
	case zap.WarnLevel:
		slogLevel = slog.LevelWarn
	case zap.ErrorLevel:
		slogLevel = slog.LevelError
	case zap.PanicLevel:
		slogLevel = slog.LevelError
	}

	return slog.New(tint.NewHandler(stdOutLogger.Writer(), &tint.Options{
		Level:      slogLevel,
		TimeFormat: time.DateTime,
	}))
}

// ComponentLogger tags a logger with the component it serves.
func ComponentLogger(name string, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("component", name))
}
