// Package adminservice serves the read-only operator views over the message
// log: the conversation overview, full transcripts, and CSV export.
package adminservice

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"

	"github.com/contenox/chatlog/messagestore"
)

// ErrConversationNotFound is returned when the requested conversation has no
// messages.
var ErrConversationNotFound = errors.New("adminservice: conversation not found")

// csvHeader is the fixed export column set.
var csvHeader = []string{"role", "content", "ts"}

type Service interface {
	// ListConversations returns every conversation, most recently active
	// first.
	ListConversations(ctx context.Context) ([]messagestore.ConversationInfo, error)
	// Transcript returns the full message history of one conversation in
	// chronological order.
	Transcript(ctx context.Context, conversationID string) ([]*messagestore.Message, error)
	// ExportCSV renders the transcript as CSV with a role, content, ts header
	// row. Timestamps are ISO-8601 UTC.
	ExportCSV(ctx context.Context, conversationID string) ([]byte, error)
}

type service struct {
	store messagestore.Store
}

// New creates the admin query service over the given store.
func New(store messagestore.Store) Service {
	return &service{store: store}
}

func (s *service) ListConversations(ctx context.Context) ([]messagestore.ConversationInfo, error) {
	infos, err := s.store.ListConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return infos, nil
}

func (s *service) Transcript(ctx context.Context, conversationID string) ([]*messagestore.Message, error) {
	messages, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript: %w", err)
	}
	if len(messages) == 0 {
		return nil, ErrConversationNotFound
	}
	return messages, nil
}

func (s *service) ExportCSV(ctx context.Context, conversationID string) ([]byte, error) {
	messages, err := s.Transcript(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, msg := range messages {
		record := []string{msg.Role, msg.Content, msg.SentAt.UTC().Format(messagestore.TimeFormat)}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write csv row %s: %w", strconv.FormatInt(msg.ID, 10), err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

var _ Service = (*service)(nil)
