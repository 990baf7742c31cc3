// Package chatservice runs the reply cycle of a chat session: persist the
// user turn, stream the completion, persist the assistant turn, then refresh
// the conversation summary. Turns within one session are strictly sequential.
package chatservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/contenox/chatlog/internal/modelrepo"
	"github.com/contenox/chatlog/libbus"
	"github.com/contenox/chatlog/messagestore"
	"github.com/contenox/chatlog/summarizer"
	"github.com/google/uuid"
)

var (
	// ErrReplyInProgress is returned when a session already awaits a reply.
	ErrReplyInProgress = errors.New("chatservice: a reply is already in progress for this session")
	// ErrEmptyMessage is returned for blank user input.
	ErrEmptyMessage = errors.New("chatservice: message content is empty")
	// ErrSessionNotFound is returned when a snapshot is requested for an
	// unknown session.
	ErrSessionNotFound = errors.New("chatservice: session not found")
)

// MessageAppendedSubject carries a MessageAppendedEvent for every persisted
// turn.
const MessageAppendedSubject = "chat.message.appended"

// State of a session. A session is either ready for input or mid-reply.
type State string

const (
	StateIdle          State = "idle"
	StateAwaitingReply State = "awaiting_reply"
)

// MessageAppendedEvent is published on the message bus after each turn is
// committed to the store.
type MessageAppendedEvent struct {
	ConversationID string    `json:"conversation_id"`
	MessageID      int64     `json:"message_id"`
	Role           string    `json:"role"`
	SentAt         time.Time `json:"ts"`
}

// SessionSnapshot is a point-in-time copy of a session for reads.
type SessionSnapshot struct {
	ConversationID string                  `json:"conversation_id"`
	State          State                   `json:"state"`
	Summary        string                  `json:"summary"`
	Messages       []*messagestore.Message `json:"messages"`
}

type Service interface {
	// StartSession creates a fresh idle session with a new conversation id.
	StartSession(ctx context.Context) (*SessionSnapshot, error)
	// SendMessage runs one full reply cycle. The returned channel delivers the
	// assistant reply as it streams; a parcel with a non-nil Error terminates
	// the cycle without an assistant turn. Synchronous errors mean nothing was
	// persisted, except ErrReplyInProgress and stream-start failures after the
	// user turn committed.
	SendMessage(ctx context.Context, conversationID string, content string) (<-chan *modelrepo.StreamParcel, error)
	// Snapshot returns the current state, history, and summary of a session.
	Snapshot(ctx context.Context, conversationID string) (*SessionSnapshot, error)
}

// session is the in-process state of one conversation. The history mirror
// holds exactly the persisted rows, in persisted order.
type session struct {
	mu             sync.Mutex
	conversationID string
	awaiting       bool
	summary        string
	history        []*messagestore.Message
}

func (s *session) snapshot() *SessionSnapshot {
	state := StateIdle
	if s.awaiting {
		state = StateAwaitingReply
	}
	messages := make([]*messagestore.Message, len(s.history))
	copy(messages, s.history)
	return &SessionSnapshot{
		ConversationID: s.conversationID,
		State:          state,
		Summary:        s.summary,
		Messages:       messages,
	}
}

type service struct {
	store      messagestore.Store
	stream     modelrepo.LLMStreamClient
	summarizer summarizer.Service
	pubsub     libbus.Messenger

	mu       sync.RWMutex
	sessions map[string]*session
}

// New creates the chat service. The summarizer and pubsub are required;
// summary failures and publish failures never fail a reply cycle.
func New(
	store messagestore.Store,
	stream modelrepo.LLMStreamClient,
	summarizerService summarizer.Service,
	pubsub libbus.Messenger,
) Service {
	return &service{
		store:      store,
		stream:     stream,
		summarizer: summarizerService,
		pubsub:     pubsub,
		sessions:   make(map[string]*session),
	}
}

func (s *service) StartSession(ctx context.Context) (*SessionSnapshot, error) {
	sess := &session{conversationID: uuid.NewString()}
	s.mu.Lock()
	s.sessions[sess.conversationID] = sess
	s.mu.Unlock()
	return sess.snapshot(), nil
}

// getOrLoad returns the in-process session, rehydrating the history mirror
// from the store for conversations first seen by another process or a prior
// run.
func (s *service) getOrLoad(ctx context.Context, conversationID string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[conversationID]
	s.mu.RUnlock()
	if ok {
		return sess, nil
	}

	history, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[conversationID]; ok {
		return sess, nil
	}
	sess = &session{conversationID: conversationID, history: history}
	s.sessions[conversationID] = sess
	return sess, nil
}

func (s *service) SendMessage(ctx context.Context, conversationID string, content string) (<-chan *modelrepo.StreamParcel, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}
	sess, err := s.getOrLoad(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if sess.awaiting {
		sess.mu.Unlock()
		return nil, ErrReplyInProgress
	}
	sess.awaiting = true
	sess.mu.Unlock()

	// The user turn commits before the completion request goes out. It stays
	// committed even when the completion fails.
	userMsg, err := s.store.Append(ctx, conversationID, messagestore.RoleUser, content)
	if err != nil {
		s.setIdle(sess)
		return nil, fmt.Errorf("failed to persist user message: %w", err)
	}
	s.appendToMirror(sess, userMsg)
	s.publishAppended(ctx, userMsg)

	parcels, err := s.stream.ChatStream(ctx, s.completionHistory(sess))
	if err != nil {
		s.setIdle(sess)
		return nil, fmt.Errorf("failed to start completion stream: %w", err)
	}

	out := make(chan *modelrepo.StreamParcel)
	go s.runReplyCycle(ctx, sess, parcels, out)
	return out, nil
}

// runReplyCycle forwards fragments to the caller while accumulating the full
// reply, then finishes the cycle: persist assistant turn, publish, refresh
// the summary. A failed stream ends the cycle with no assistant row.
func (s *service) runReplyCycle(ctx context.Context, sess *session, parcels <-chan *modelrepo.StreamParcel, out chan<- *modelrepo.StreamParcel) {
	defer close(out)
	defer s.setIdle(sess)

	var reply strings.Builder
	for parcel := range parcels {
		select {
		case out <- parcel:
		case <-ctx.Done():
			return
		}
		if parcel.Error != nil {
			return
		}
		reply.WriteString(parcel.Data)
	}
	if ctx.Err() != nil {
		return
	}

	assistantMsg, err := s.store.Append(ctx, sess.conversationID, messagestore.RoleAssistant, reply.String())
	if err != nil {
		err = fmt.Errorf("failed to persist assistant message: %w", err)
		select {
		case out <- &modelrepo.StreamParcel{Error: err}:
		case <-ctx.Done():
		}
		return
	}
	s.appendToMirror(sess, assistantMsg)
	s.publishAppended(ctx, assistantMsg)
	s.refreshSummary(ctx, sess)
}

func (s *service) Snapshot(ctx context.Context, conversationID string) (*SessionSnapshot, error) {
	s.mu.RLock()
	sess, ok := s.sessions[conversationID]
	s.mu.RUnlock()
	if ok {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		return sess.snapshot(), nil
	}

	// Not resident; known conversations are still served from the store.
	count, err := s.store.CountMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up conversation: %w", err)
	}
	if count == 0 {
		return nil, ErrSessionNotFound
	}
	sess, err = s.getOrLoad(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.snapshot(), nil
}

func (s *service) setIdle(sess *session) {
	sess.mu.Lock()
	sess.awaiting = false
	sess.mu.Unlock()
}

func (s *service) appendToMirror(sess *session, msg *messagestore.Message) {
	sess.mu.Lock()
	sess.history = append(sess.history, msg)
	sess.mu.Unlock()
}

// completionHistory converts the mirror into the wire history for the
// completion service.
func (s *service) completionHistory(sess *session) []modelrepo.Message {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	messages := make([]modelrepo.Message, 0, len(sess.history))
	for _, msg := range sess.history {
		messages = append(messages, modelrepo.Message{Role: msg.Role, Content: msg.Content})
	}
	return messages
}

// publishAppended emits the bus event for a committed turn. Publish failures
// are swallowed; the bus is a notification channel, not part of the cycle.
func (s *service) publishAppended(ctx context.Context, msg *messagestore.Message) {
	payload, err := json.Marshal(MessageAppendedEvent{
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
		Role:           msg.Role,
		SentAt:         msg.SentAt,
	})
	if err != nil {
		return
	}
	_ = s.pubsub.Publish(ctx, MessageAppendedSubject, payload)
}

// refreshSummary recomputes the session digest after a completed exchange.
// Failure keeps the previous summary.
func (s *service) refreshSummary(ctx context.Context, sess *session) {
	sess.mu.Lock()
	history := make([]*messagestore.Message, len(sess.history))
	copy(history, sess.history)
	sess.mu.Unlock()

	summary, err := s.summarizer.Summarize(ctx, history)
	if err != nil {
		return
	}
	sess.mu.Lock()
	sess.summary = summary
	sess.mu.Unlock()
}

var _ Service = (*service)(nil)
