package logger

import (
	"log/slog"
	"os"
)

// New returns the root structured logger. Services receive it via
// constructor injection and attach their own attrs.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
