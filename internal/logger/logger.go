package logger

import (
	"io"
	"log/slog"
	"os"

	"pdf-query-system/internal/config"
)

var Logger *slog.Logger

// InitLogger initializes structured logging based on configuration
func InitLogger(cfg *config.Config) {
	InitLoggerTo(os.Stdout, cfg.GinMode)
}

// InitLoggerTo writes JSON logs to w. Debug mode lowers the level and adds source.
func InitLoggerTo(w io.Writer, mode string) {
	level := slog.LevelInfo
	if mode == "debug" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: mode == "debug",
	}

	Logger = slog.New(slog.NewJSONHandler(w, opts))
	Logger.Debug("Structured logging initialized", "level", level.String())
}

func get() *slog.Logger {
	if Logger != nil {
		return Logger
	}
	return slog.Default()
}

// Helper functions for common log operations
func Info(msg string, args ...any) {
	get().Info(msg, args...)
}

func Error(msg string, args ...any) {
	get().Error(msg, args...)
}

func Debug(msg string, args ...any) {
	get().Debug(msg, args...)
}

func Warn(msg string, args ...any) {
	get().Warn(msg, args...)
}
