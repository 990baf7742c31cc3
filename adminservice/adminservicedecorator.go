package adminservice

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

func (d *activityTrackerDecorator) ListConversations(ctx context.Context) ([]messagestore.ConversationInfo, error) {
	reportErr, _, endFn := d.tracker.Start(ctx, "list_conversations", "admin")
	defer endFn()

	infos, err := d.service.ListConversations(ctx)
	if err != nil {
		reportErr(fmt.Errorf("list conversations failed: %w", err))
		return nil, err
	}
	return infos, nil
}

func (d *activityTrackerDecorator) Transcript(ctx context.Context, conversationID string) ([]*messagestore.Message, error) {
	reportErr, _, endFn := d.tracker.Start(
		ctx,
		"transcript",
		"admin",
		"conversation_id", conversationID,
	)
	defer endFn()

	messages, err := d.service.Transcript(ctx, conversationID)
	if err != nil {
		reportErr(fmt.Errorf("transcript failed: %w", err))
		return nil, err
	}
	return messages, nil
}

func (d *activityTrackerDecorator) ExportCSV(ctx context.Context, conversationID string) ([]byte, error) {
	reportErr, reportChange, endFn := d.tracker.Start(
		ctx,
		"export_csv",
		"admin",
		"conversation_id", conversationID,
	)
	defer endFn()

	data, err := d.service.ExportCSV(ctx, conversationID)
	if err != nil {
		reportErr(fmt.Errorf("csv export failed: %w", err))
		return nil, err
	}

	reportChange("csv_exported", map[string]any{
		"byte_size": len(data),
	})
	return data, nil
}

// WithActivityTracker creates a new decorated service that tracks activity
func WithActivityTracker(service Service, tracker libtracker.ActivityTracker) Service {
	return &activityTrackerDecorator{
		service: service,
		tracker: tracker,
	}
}

var _ Service = (*activityTrackerDecorator)(nil)
