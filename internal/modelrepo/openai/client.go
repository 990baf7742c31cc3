// Package openai implements the completion-service contract against any
// OpenAI-compatible chat completions endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/contenox/chatlog/internal/modelrepo"
	"github.com/contenox/chatlog/libtracker"
)

type openAIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	modelName  string
	tracker    libtracker.ActivityTracker
}

// Config holds the connection settings for an OpenAI-compatible backend.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
	Tracker    libtracker.ActivityTracker
}

func newClient(cfg Config) openAIClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	tracker := cfg.Tracker
	if tracker == nil {
		tracker = libtracker.NoopTracker{}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return openAIClient{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		modelName:  cfg.Model,
		tracker:    tracker,
	}
}

type openAIChatRequest struct {
	Model       string              `json:"model"`
	Messages    []modelrepo.Message `json:"messages"`
	Temperature *float64            `json:"temperature,omitempty"`
	MaxTokens   *int                `json:"max_tokens,omitempty"`
	TopP        *float64            `json:"top_p,omitempty"`
	Seed        *int                `json:"seed,omitempty"`
	Stream      bool                `json:"stream,omitempty"`
}

func buildOpenAIRequest(modelName string, messages []modelrepo.Message, args []modelrepo.ChatArgument) openAIChatRequest {
	req := openAIChatRequest{
		Model:    modelName,
		Messages: messages,
	}
	cfg := &modelrepo.ChatConfig{}
	for _, a := range args {
		a.Apply(cfg)
	}
	req.Temperature = cfg.Temperature
	req.MaxTokens = cfg.MaxTokens
	req.TopP = cfg.TopP
	req.Seed = cfg.Seed
	return req
}

func (c *openAIClient) sendRequest(ctx context.Context, endpoint string, request any, response any) error {
	url := c.baseURL + endpoint

	auth := "***"
	if len(c.apiKey) > 24 {
		auth = c.apiKey[:24]
	}
	reportErr, reportChange, end := c.tracker.Start(
		ctx,
		"http_request",
		"openai",
		"model", c.modelName,
		"endpoint", endpoint,
		"base_url", c.baseURL,
		"auth", auth,
	)
	defer end()

	var reqBody io.Reader
	if request != nil {
		marshaledReqBody, err := json.Marshal(request)
		if err != nil {
			err = fmt.Errorf("failed to marshal request: %w", err)
			reportErr(err)
			return err
		}
		reqBody = bytes.NewBuffer(marshaledReqBody)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, reqBody)
	if err != nil {
		err = fmt.Errorf("failed to create request: %w", err)
		reportErr(err)
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("%w: HTTP request failed for model %s: %w", modelrepo.ErrCompletionService, c.modelName, err)
		reportErr(err)
		return err
	}
	defer resp.Body.Close()

	reportChange("http_response", map[string]any{
		"status_code": resp.StatusCode,
	})

	if resp.StatusCode != http.StatusOK {
		var errorResponse struct {
			Error struct {
				Message string `json:"message"`
				Type    string `json:"type"`
				Code    any    `json:"code"`
			} `json:"error"`
		}
		bodyBytes, readErr := io.ReadAll(resp.Body)
		if readErr == nil {
			if jsonErr := json.Unmarshal(bodyBytes, &errorResponse); jsonErr == nil && errorResponse.Error.Message != "" {
				err = fmt.Errorf("%w: non-200 status %d, type: %s, code: %v, message: %s for model %s",
					modelrepo.ErrCompletionService, resp.StatusCode, errorResponse.Error.Type,
					errorResponse.Error.Code, errorResponse.Error.Message, c.modelName)
				reportErr(err)
				return err
			}
			err = fmt.Errorf("%w: non-200 status %d, body: %s for model %s",
				modelrepo.ErrCompletionService, resp.StatusCode, string(bodyBytes), c.modelName)
			reportErr(err)
			return err
		}
		err = fmt.Errorf("%w: non-200 status %d for model %s", modelrepo.ErrCompletionService, resp.StatusCode, c.modelName)
		reportErr(err)
		return err
	}

	if response != nil {
		if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
			err = fmt.Errorf("%w: failed to decode response for model %s: %w", modelrepo.ErrCompletionService, c.modelName, err)
			reportErr(err)
			return err
		}
	}

	reportChange("request_completed", nil)
	return nil
}
