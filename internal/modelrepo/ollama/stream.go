package ollama

import (
	"context"
	"fmt"

	"github.com/contenox/chatlog/internal/modelrepo"
	"github.com/ollama/ollama/api"
)

type OllamaStreamClient struct {
	ollamaClient
}

// NewOllamaStreamClient creates a streamed chat client.
func NewOllamaStreamClient(cfg Config) (*OllamaStreamClient, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &OllamaStreamClient{ollamaClient: client}, nil
}

func (c *OllamaStreamClient) ChatStream(ctx context.Context, messages []modelrepo.Message, args ...modelrepo.ChatArgument) (<-chan *modelrepo.StreamParcel, error) {
	reportErr, reportChange, end := c.tracker.Start(ctx, "stream", "ollama", "model", c.modelName)
	// end() is not deferred here because the stream outlives this call.

	stream := true
	req := &api.ChatRequest{
		Model:    c.modelName,
		Messages: apiMessages(messages),
		Stream:   &stream,
		Options:  chatOptions(args),
	}

	streamCh := make(chan *modelrepo.StreamParcel)

	go func() {
		defer close(streamCh)
		defer end()

		var chunkCount int
		var totalLength int
		err := c.apiClient.Chat(ctx, req, func(resp api.ChatResponse) error {
			if resp.Message.Content == "" {
				return nil
			}
			chunkCount++
			totalLength += len(resp.Message.Content)
			select {
			case streamCh <- &modelrepo.StreamParcel{Data: resp.Message.Content}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			err = fmt.Errorf("%w: ollama stream failed for model %s: %w", modelrepo.ErrCompletionService, c.modelName, err)
			reportErr(err)
			select {
			case streamCh <- &modelrepo.StreamParcel{Error: err}:
			case <-ctx.Done():
			}
			return
		}

		reportChange("stream_completed", map[string]any{
			"chunk_count":  chunkCount,
			"total_length": totalLength,
		})
	}()

	return streamCh, nil
}

var _ modelrepo.LLMStreamClient = (*OllamaStreamClient)(nil)
