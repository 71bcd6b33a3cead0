package tracking

import (
	"context"
	"log/slog"

	"github.com/helixml/tileqc/domain/run"
)

// LoggingReporter implements Reporter by logging status changes.
type LoggingReporter struct {
	logger *slog.Logger
}

// NewLoggingReporter creates a new LoggingReporter.
func NewLoggingReporter(logger *slog.Logger) *LoggingReporter {
	return &LoggingReporter{
		logger: logger,
	}
}

// OnChange logs the run status change.
func (r *LoggingReporter) OnChange(ctx context.Context, status run.Status) error {
	attrs := []slog.Attr{
		slog.String("run_id", status.RunID()),
		slog.String("stage", string(status.Stage())),
		slog.String("state", string(status.State())),
		slog.Float64("completion_percent", status.Percent()),
	}
	if d, ok := status.Remaining(); ok {
		attrs = append(attrs, slog.Duration("remaining", d))
	}

	if status.State() == run.ReportingStateFailed {
		attrs = append(attrs, slog.String("error", status.Error()))
		r.logger.LogAttrs(ctx, slog.LevelError, "analysis", attrs...)
		return nil
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "analysis", attrs...)
	return nil
}

// OnMalformedRecord logs the skipped record.
func (r *LoggingReporter) OnMalformedRecord(ctx context.Context, rec run.MalformedRecord) error {
	r.logger.LogAttrs(ctx, slog.LevelWarn, "skipping malformed record",
		slog.String("run_id", rec.RunID),
		slog.String("stage", string(rec.Stage)),
		slog.Int64("index", rec.Index),
		slog.String("id", rec.ID),
		slog.Any("error", rec.Err),
	)
	return nil
}
