package audithook

import (
	"context"
	"log/slog"
)

// LogRecorder writes audit events to a structured logger. Failures and
// warnings are logged at WARN, everything else at INFO.
func LogRecorder(logger *slog.Logger) Recorder {
	return RecorderFunc(func(ctx context.Context, ev *AuditEvent) error {
		level := slog.LevelInfo
		if ev.Outcome == OutcomeFailure || ev.Severity != SeverityInfo {
			level = slog.LevelWarn
		}
		logger.LogAttrs(ctx, level, "audit",
			slog.String("action", ev.Action),
			slog.String("resource", ev.Resource),
			slog.String("resource_id", ev.ResourceID),
			slog.String("outcome", ev.Outcome),
			slog.Any("metadata", ev.Metadata),
		)
		return nil
	})
}
