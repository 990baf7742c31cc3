package messagestore

import (
	"context"
	"encoding/json"
	"time"
)

// Message is one immutable, persisted conversational turn.
type Message struct {
	ID             int64           `json:"id"`
	ConversationID string          `json:"conversation_id"`
	Role           string          `json:"role"`
	Content        string          `json:"content"`
	SentAt         time.Time       `json:"ts"`
	Metadata       json.RawMessage `json:"metadata"`
}

// Roles of a conversational turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationInfo is the aggregate view of one conversation, computed on
// demand; conversations are never persisted as their own rows.
type ConversationInfo struct {
	ConversationID string    `json:"conversation_id"`
	FirstMessageAt time.Time `json:"first_ts"`
	LastMessageAt  time.Time `json:"last_ts"`
	MessageCount   int       `json:"msg_count"`
}

// Store defines the data access interface for the append-only message log.
// No update or delete operations exist; every write is a single atomic insert.
type Store interface {
	// Append persists one new turn with a server-assigned id, the current
	// UTC timestamp, and an empty metadata payload. It returns the committed
	// row.
	Append(ctx context.Context, conversationID string, role string, content string) (*Message, error)
	// ListMessages returns all messages of a conversation in ascending id
	// order. An unknown conversation yields an empty slice, not an error.
	ListMessages(ctx context.Context, conversationID string) ([]*Message, error)
	// ListConversations aggregates over all messages, one entry per distinct
	// conversation, ordered by last activity descending.
	ListConversations(ctx context.Context) ([]ConversationInfo, error)
	// CountMessages reports the number of persisted turns of a conversation.
	CountMessages(ctx context.Context, conversationID string) (int, error)
}
