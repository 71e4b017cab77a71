package observability

import (
	"log/slog"
	"os"
)

// NewLogger builds the base JSON logger every process in this tree logs
// through, tagged with "component"="errortracker" so lines from this
// service are identifiable in a log stream shared with other
// processes. dev environments log at debug level, all others at info.
func NewLogger(env string) *slog.Logger {
	level := slog.LevelInfo

	if env == "dev" {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(handler).With("component", "errortracker")
}
