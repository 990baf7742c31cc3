// Package libtracker provides activity tracking for service operations.
// Services wrap their methods with a tracker Start call; the returned
// functions report errors, state changes, and the end of the operation.
package libtracker

import (
	"context"
	"log/slog"
	"time"
)

type contextKey string

// ReportErrFunc reports an operation failure.
type ReportErrFunc func(err error)

// ReportChangeFunc reports a named state change with an associated value.
type ReportChangeFunc func(event string, value any)

// EndFunc marks the end of the tracked operation.
type EndFunc func()

// ActivityTracker records the lifecycle of an operation on a subject.
// kvArgs are alternating key/value pairs of additional context.
type ActivityTracker interface {
	Start(ctx context.Context, operation string, subject string, kvArgs ...any) (ReportErrFunc, ReportChangeFunc, EndFunc)
}

// LogActivityTracker writes activity to a structured logger.
type LogActivityTracker struct {
	logger *slog.Logger
}

// NewLogActivityTracker creates an ActivityTracker backed by the given slog logger.
func NewLogActivityTracker(logger *slog.Logger) *LogActivityTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogActivityTracker{logger: logger}
}

func (t *LogActivityTracker) Start(ctx context.Context, operation string, subject string, kvArgs ...any) (ReportErrFunc, ReportChangeFunc, EndFunc) {
	started := time.Now()
	attrs := []any{
		slog.String("operation", operation),
		slog.String("subject", subject),
	}
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok && requestID != "" {
		attrs = append(attrs, slog.String("request_id", requestID))
	}
	if traceID, ok := ctx.Value(ContextKeyTraceID).(string); ok && traceID != "" {
		attrs = append(attrs, slog.String("trace_id", traceID))
	}
	attrs = append(attrs, kvArgs...)
	logger := t.logger.With(attrs...)
	logger.DebugContext(ctx, "operation started")

	reportErr := func(err error) {
		logger.ErrorContext(ctx, "operation failed", slog.Any("error", err))
	}
	reportChange := func(event string, value any) {
		logger.InfoContext(ctx, event, slog.Any("value", value))
	}
	end := func() {
		logger.DebugContext(ctx, "operation ended", slog.Duration("took", time.Since(started)))
	}
	return reportErr, reportChange, end
}

// ChainedTracker fans activity out to multiple trackers.
type ChainedTracker []ActivityTracker

func (c ChainedTracker) Start(ctx context.Context, operation string, subject string, kvArgs ...any) (ReportErrFunc, ReportChangeFunc, EndFunc) {
	reportErrs := make([]ReportErrFunc, 0, len(c))
	reportChanges := make([]ReportChangeFunc, 0, len(c))
	ends := make([]EndFunc, 0, len(c))
	for _, tracker := range c {
		reportErr, reportChange, end := tracker.Start(ctx, operation, subject, kvArgs...)
		reportErrs = append(reportErrs, reportErr)
		reportChanges = append(reportChanges, reportChange)
		ends = append(ends, end)
	}
	return func(err error) {
			for _, f := range reportErrs {
				f(err)
			}
		}, func(event string, value any) {
			for _, f := range reportChanges {
				f(event, value)
			}
		}, func() {
			for _, f := range ends {
				f()
			}
		}
}

// NoopTracker discards all activity.
type NoopTracker struct{}

func (NoopTracker) Start(ctx context.Context, operation string, subject string, kvArgs ...any) (ReportErrFunc, ReportChangeFunc, EndFunc) {
	return func(error) {}, func(string, any) {}, func() {}
}

var _ ActivityTracker = (*LogActivityTracker)(nil)
var _ ActivityTracker = (ChainedTracker)(nil)
var _ ActivityTracker = NoopTracker{}
