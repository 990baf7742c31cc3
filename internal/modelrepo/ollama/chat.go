package ollama

import (
	"context"
	"fmt"
	"strings"

	"github.com/contenox/chatlog/internal/modelrepo"
	"github.com/ollama/ollama/api"
)

type OllamaChatClient struct {
	ollamaClient
}

// NewOllamaChatClient creates a non-streamed chat client.
func NewOllamaChatClient(cfg Config) (*OllamaChatClient, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &OllamaChatClient{ollamaClient: client}, nil
}

func (c *OllamaChatClient) Chat(ctx context.Context, messages []modelrepo.Message, args ...modelrepo.ChatArgument) (modelrepo.ChatResult, error) {
	reportErr, reportChange, end := c.tracker.Start(ctx, "chat", "ollama", "model", c.modelName)
	defer end()

	stream := false
	req := &api.ChatRequest{
		Model:    c.modelName,
		Messages: apiMessages(messages),
		Stream:   &stream,
		Options:  chatOptions(args),
	}

	var content strings.Builder
	var role string
	err := c.apiClient.Chat(ctx, req, func(resp api.ChatResponse) error {
		if resp.Message.Role != "" {
			role = resp.Message.Role
		}
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		err = fmt.Errorf("%w: ollama chat failed for model %s: %w", modelrepo.ErrCompletionService, c.modelName, err)
		reportErr(err)
		return modelrepo.ChatResult{}, err
	}

	if content.Len() == 0 {
		err := fmt.Errorf("%w: empty content from model %s", modelrepo.ErrCompletionService, c.modelName)
		reportErr(err)
		return modelrepo.ChatResult{}, err
	}
	if role == "" {
		role = "assistant"
	}

	result := modelrepo.ChatResult{
		Message: modelrepo.Message{
			Role:    role,
			Content: content.String(),
		},
	}
	reportChange("chat_completed", result)
	return result, nil
}

var _ modelrepo.LLMChatClient = (*OllamaChatClient)(nil)
