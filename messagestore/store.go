// Package messagestore persists chat turns in an append-only log keyed by
// conversation. Rows are immutable once written; the aggregate conversation
// view is computed on demand.
package messagestore

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/contenox/chatlog/libdbexec"
)

// Schema is the idempotent table setup for Postgres; apply on every start.
//
//go:embed schema.sql
var Schema string

// SchemaSQLite is the idempotent table setup for SQLite.
//
//go:embed schema_sqlite.sql
var SchemaSQLite string

// TimeFormat is the ISO-8601 UTC layout used for the ts column. Fixed-width
// fractional seconds keep lexicographic order equal to chronological order,
// which MIN/MAX aggregation over the text column relies on.
const TimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// emptyMetadata is the reserved extension payload; always written as-is today.
var emptyMetadata = json.RawMessage(`{}`)

type store struct {
	Exec libdbexec.Exec
}

// New creates a new message store instance over the given executor.
func New(exec libdbexec.Exec) Store {
	return &store{Exec: exec}
}

func (s *store) Append(ctx context.Context, conversationID string, role string, content string) (*Message, error) {
	now := time.Now().UTC()
	msg := &Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		SentAt:         now,
		Metadata:       emptyMetadata,
	}
	err := s.Exec.QueryRowContext(ctx, `
		INSERT INTO messages(conversation_id, role, content, ts, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		conversationID,
		role,
		content,
		now.Format(TimeFormat),
		string(emptyMetadata),
	).Scan(&msg.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	return msg, nil
}

func (s *store) ListMessages(ctx context.Context, conversationID string) ([]*Message, error) {
	rows, err := s.Exec.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, ts, metadata
		FROM messages
		WHERE conversation_id = $1
		ORDER BY id`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []*Message{}
	for rows.Next() {
		var msg Message
		var ts, metadata string
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &ts, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.SentAt, err = time.Parse(TimeFormat, ts)
		if err != nil {
			return nil, fmt.Errorf("failed to parse message timestamp %q: %w", ts, err)
		}
		msg.Metadata = json.RawMessage(metadata)
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}

func (s *store) ListConversations(ctx context.Context) ([]ConversationInfo, error) {
	rows, err := s.Exec.QueryContext(ctx, `
		SELECT conversation_id,
		       MIN(ts)  AS first_ts,
		       MAX(ts)  AS last_ts,
		       COUNT(*) AS msg_count
		FROM messages
		GROUP BY conversation_id
		ORDER BY last_ts DESC, conversation_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	conversations := []ConversationInfo{}
	for rows.Next() {
		var info ConversationInfo
		var firstTS, lastTS string
		if err := rows.Scan(&info.ConversationID, &firstTS, &lastTS, &info.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		info.FirstMessageAt, err = time.Parse(TimeFormat, firstTS)
		if err != nil {
			return nil, fmt.Errorf("failed to parse first timestamp %q: %w", firstTS, err)
		}
		info.LastMessageAt, err = time.Parse(TimeFormat, lastTS)
		if err != nil {
			return nil, fmt.Errorf("failed to parse last timestamp %q: %w", lastTS, err)
		}
		conversations = append(conversations, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversations: %w", err)
	}
	return conversations, nil
}

func (s *store) CountMessages(ctx context.Context, conversationID string) (int, error) {
	var count int
	err := s.Exec.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE conversation_id = $1`,
		conversationID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}
