package cli

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	slogmulti "github.com/samber/slog-multi"
)

// setupLogging configures the process-wide slog default: colored output
// on stderr, optionally fanned out to a JSON log file.
func setupLogging(levelName string, noColor bool, logFile string) (*slog.Logger, error) {
	var level slog.Level
	switch levelName {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.Handler(tint.NewHandler(colorable.NewColorableStderr(), &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
		NoColor:    noColor,
	}))

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		handler = slogmulti.Fanout(
			handler,
			slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}),
		)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}
