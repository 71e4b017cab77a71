package observability

import (
	"context"
	"log/slog"
)

// TrackerLogger adapts a *slog.Logger to the tracker.Logger contract
// (component 4.G): Warn(ctx, err, template, args...). The template's
// positional {name} placeholders are rendered as a flat "key=value" slog
// attribute list instead of interpolated into the message string, since
// slog's structured fields are the teacher's own idiom for this (see
// internal/queue/worker.runWorker's slog.Default().ErrorContext calls).
type TrackerLogger struct {
	Logger *slog.Logger
}

// NewTrackerLogger wraps logger. A nil logger falls back to slog.Default().
func NewTrackerLogger(logger *slog.Logger) *TrackerLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrackerLogger{Logger: logger}
}

// Warn implements tracker.Logger. args are expected in the order the
// tracker's RegisterError supplies them: errorNumber, then messageId.
func (l *TrackerLogger) Warn(ctx context.Context, err error, template string, args ...any) {
	attrs := make([]any, 0, len(args)*2+2)
	if len(args) > 0 {
		attrs = append(attrs, "error_number", args[0])
	}
	if len(args) > 1 {
		attrs = append(attrs, "message_id", args[1])
	}
	attrs = append(attrs, "err", err)

	l.Logger.WarnContext(ctx, template, attrs...)
}
