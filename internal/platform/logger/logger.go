package logger

import (
	"log/slog"
	"os"
)

// New returns a structured JSON logger using slog. Debug enables the debug
// level used for transport request/response tracing.
func New(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
