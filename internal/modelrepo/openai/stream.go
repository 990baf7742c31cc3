package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/contenox/chatlog/internal/modelrepo"
)

type OpenAIStreamClient struct {
	openAIClient
}

// NewOpenAIStreamClient creates a streamed chat client.
func NewOpenAIStreamClient(cfg Config) *OpenAIStreamClient {
	return &OpenAIStreamClient{openAIClient: newClient(cfg)}
}

type openAIChatStreamResponseChunk struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int    `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index int `json:"index"`
		Delta struct {
			Role    string `json:"role,omitempty"`
			Content string `json:"content,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (c *OpenAIStreamClient) ChatStream(ctx context.Context, messages []modelrepo.Message, args ...modelrepo.ChatArgument) (<-chan *modelrepo.StreamParcel, error) {
	reportErr, reportChange, end := c.tracker.Start(ctx, "stream", "openai", "model", c.modelName)
	// end() is not deferred here because the stream outlives this call.

	request := buildOpenAIRequest(c.modelName, messages, args)
	request.Stream = true

	url := c.baseURL + "/chat/completions"
	reqBody, err := json.Marshal(request)
	if err != nil {
		end()
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(reqBody))
	if err != nil {
		end()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("%w: HTTP request failed for model %s: %w", modelrepo.ErrCompletionService, c.modelName, err)
		reportErr(err)
		end()
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		err = fmt.Errorf("%w: non-200 status %d - %s for model %s",
			modelrepo.ErrCompletionService, resp.StatusCode, string(body), c.modelName)
		reportErr(err)
		end()
		return nil, err
	}

	streamCh := make(chan *modelrepo.StreamParcel)

	go func() {
		defer close(streamCh)
		defer resp.Body.Close()
		defer end()

		scanner := bufio.NewScanner(resp.Body)
		var chunkCount int
		var totalContent strings.Builder

		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}

			// SSE format starts with "data: "
			if strings.HasPrefix(line, "data: ") {
				jsonData := strings.TrimPrefix(line, "data: ")
				if jsonData == "[DONE]" {
					continue
				}

				var chunk openAIChatStreamResponseChunk
				if err := json.Unmarshal([]byte(jsonData), &chunk); err != nil {
					select {
					case streamCh <- &modelrepo.StreamParcel{
						Error: fmt.Errorf("%w: failed to decode SSE data: %w, raw: %s", modelrepo.ErrCompletionService, err, jsonData),
					}:
					case <-ctx.Done():
						return
					}
					continue
				}

				if len(chunk.Choices) > 0 {
					delta := chunk.Choices[0].Delta
					if delta.Content != "" {
						chunkCount++
						totalContent.WriteString(delta.Content)
						select {
						case streamCh <- &modelrepo.StreamParcel{Data: delta.Content}:
						case <-ctx.Done():
							return
						}
					}
				}
			}
		}

		if err := scanner.Err(); err != nil && err != io.EOF {
			err = fmt.Errorf("%w: stream scanning error: %w", modelrepo.ErrCompletionService, err)
			reportErr(err)
			select {
			case streamCh <- &modelrepo.StreamParcel{Error: err}:
			case <-ctx.Done():
				return
			}
			return
		}

		reportChange("stream_completed", map[string]any{
			"chunk_count":  chunkCount,
			"total_length": totalContent.Len(),
		})
	}()

	return streamCh, nil
}

var _ modelrepo.LLMStreamClient = (*OpenAIStreamClient)(nil)
