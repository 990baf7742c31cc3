// Package summarizer condenses the trailing window of a conversation into a
// short Japanese digest via a completion model.
package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/contenox/chatlog/internal/modelrepo"
	"github.com/contenox/chatlog/messagestore"
)

// DefaultWindowSize is the number of trailing messages fed to the model when
// no explicit window is configured.
const DefaultWindowSize = 30

// systemInstruction pins the digest shape. The digest language is fixed to
// Japanese regardless of the conversation language.
const systemInstruction = "以下の会話履歴を3〜5行の日本語で要約してください。重要な話題と結論を簡潔にまとめてください。"

type Service interface {
	// Summarize condenses the trailing window of the given history into a
	// short digest. The full history is passed in; windowing happens here.
	Summarize(ctx context.Context, history []*messagestore.Message) (string, error)
}

type service struct {
	client     modelrepo.LLMChatClient
	windowSize int
}

// New creates a summarizer over the given completion client. A windowSize of
// zero or less falls back to DefaultWindowSize.
func New(client modelrepo.LLMChatClient, windowSize int) Service {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &service{client: client, windowSize: windowSize}
}

func (s *service) Summarize(ctx context.Context, history []*messagestore.Message) (string, error) {
	if len(history) == 0 {
		return "", nil
	}

	window := history
	if len(window) > s.windowSize {
		window = window[len(window)-s.windowSize:]
	}

	var transcript strings.Builder
	for _, msg := range window {
		transcript.WriteString(msg.Role)
		transcript.WriteString(": ")
		transcript.WriteString(msg.Content)
		transcript.WriteString("\n")
	}

	result, err := s.client.Chat(ctx, []modelrepo.Message{
		{Role: "system", Content: systemInstruction},
		{Role: "user", Content: transcript.String()},
	})
	if err != nil {
		return "", fmt.Errorf("failed to summarize conversation: %w", err)
	}
	return strings.TrimSpace(result.Message.Content), nil
}

var _ Service = (*service)(nil)
