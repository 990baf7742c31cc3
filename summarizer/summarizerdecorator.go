package summarizer

import (
	"context"
	"fmt"

	"github.com/contenox/chatlog/libtracker"
	"github.com/contenox/chatlog/messagestore"
)

type activityTrackerDecorator struct {
	service Service
	tracker libtracker.ActivityTracker
}

func (d *activityTrackerDecorator) Summarize(ctx context.Context, history []*messagestore.Message) (string, error) {
	reportErr, reportChange, endFn := d.tracker.Start(
		ctx,
		"summarize",
		"conversation",
		"history_length", len(history),
	)
	defer endFn()

	summary, err := d.service.Summarize(ctx, history)
	if err != nil {
		reportErr(fmt.Errorf("summarization failed: %w", err))
		return "", err
	}

	reportChange("summary_computed", map[string]any{
		"summary_length": len(summary),
	})
	return summary, nil
}

// WithActivityTracker creates a new decorated service that tracks activity
func WithActivityTracker(service Service, tracker libtracker.ActivityTracker) Service {
	return &activityTrackerDecorator{
		service: service,
		tracker: tracker,
	}
}

var _ Service = (*activityTrackerDecorator)(nil)
