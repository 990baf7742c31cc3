package chatservice

import (
	"context"
	"fmt"

	"github.com/contenox/chatlog/internal/modelrepo"
	"github.com/contenox/chatlog/libtracker"
)

type activityTrackerDecorator struct {
	service Service
	tracker libtracker.ActivityTracker
}

func (d *activityTrackerDecorator) StartSession(ctx context.Context) (*SessionSnapshot, error) {
	reportErr, reportChange, endFn := d.tracker.Start(ctx, "start_session", "session")
	defer endFn()

	snapshot, err := d.service.StartSession(ctx)
	if err != nil {
		reportErr(fmt.Errorf("start session failed: %w", err))
		return nil, err
	}

	reportChange("session_started", map[string]any{
		"conversation_id": snapshot.ConversationID,
	})
	return snapshot, nil
}

func (d *activityTrackerDecorator) SendMessage(ctx context.Context, conversationID string, content string) (<-chan *modelrepo.StreamParcel, error) {
	reportErr, _, endFn := d.tracker.Start(
		ctx,
		"send_message",
		"session",
		"conversation_id", conversationID,
		"content_length", len(content),
	)
	defer endFn()

	parcels, err := d.service.SendMessage(ctx, conversationID, content)
	if err != nil {
		reportErr(fmt.Errorf("send message failed: %w", err))
		return nil, err
	}

	return parcels, nil
}

func (d *activityTrackerDecorator) Snapshot(ctx context.Context, conversationID string) (*SessionSnapshot, error) {
	reportErr, _, endFn := d.tracker.Start(
		ctx,
		"snapshot",
		"session",
		"conversation_id", conversationID,
	)
	defer endFn()

	snapshot, err := d.service.Snapshot(ctx, conversationID)
	if err != nil {
		reportErr(fmt.Errorf("snapshot failed: %w", err))
		return nil, err
	}

	return snapshot, nil
}

// WithActivityTracker creates a new decorated service that tracks activity
func WithActivityTracker(service Service, tracker libtracker.ActivityTracker) Service {
	return &activityTrackerDecorator{
		service: service,
		tracker: tracker,
	}
}

var _ Service = (*activityTrackerDecorator)(nil)
