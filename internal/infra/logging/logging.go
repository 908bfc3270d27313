// Package logging configures the process-wide slog logger. Services log
// through slog's default logger directly, so this runs once in main
// before anything else starts.
package logging

import (
	"log/slog"
	"os"
)

// SetupJSON installs a JSON handler writing to stdout at the given level
// as the slog default.
func SetupJSON(level slog.Level) {
	slog.SetDefault(slog.New(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}),
	))
}
