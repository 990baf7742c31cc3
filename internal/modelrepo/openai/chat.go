package openai

import (
	"context"
	"fmt"

	"github.com/contenox/chatlog/internal/modelrepo"
)

type OpenAIChatClient struct {
	openAIClient
}

// NewOpenAIChatClient creates a non-streamed chat client.
func NewOpenAIChatClient(cfg Config) *OpenAIChatClient {
	return &OpenAIChatClient{openAIClient: newClient(cfg)}
}

func (c *OpenAIChatClient) Chat(ctx context.Context, messages []modelrepo.Message, args ...modelrepo.ChatArgument) (modelrepo.ChatResult, error) {
	reportErr, reportChange, end := c.tracker.Start(ctx, "chat", "openai", "model", c.modelName)
	defer end()

	req := buildOpenAIRequest(c.modelName, messages, args)

	var response struct {
		Choices []struct {
			Index   int `json:"index"`
			Message struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}

	if err := c.sendRequest(ctx, "/chat/completions", req, &response); err != nil {
		reportErr(err)
		return modelrepo.ChatResult{}, err
	}

	if len(response.Choices) == 0 {
		err := fmt.Errorf("%w: no chat completion choices returned for model %s", modelrepo.ErrCompletionService, c.modelName)
		reportErr(err)
		return modelrepo.ChatResult{}, err
	}

	choice := response.Choices[0]
	if choice.Message.Content == "" {
		err := fmt.Errorf("%w: empty content from model %s despite normal completion, finish reason: %s",
			modelrepo.ErrCompletionService, c.modelName, choice.FinishReason)
		reportErr(err)
		return modelrepo.ChatResult{}, err
	}

	result := modelrepo.ChatResult{
		Message: modelrepo.Message{
			Role:    choice.Message.Role,
			Content: choice.Message.Content,
		},
	}
	reportChange("chat_completed", result)
	return result, nil
}

var _ modelrepo.LLMChatClient = (*OpenAIChatClient)(nil)
