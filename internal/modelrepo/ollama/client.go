// Package ollama implements the completion-service contract against a local
// or remote Ollama backend.
package ollama

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/contenox/chatlog/internal/modelrepo"
	"github.com/contenox/chatlog/libtracker"
	"github.com/ollama/ollama/api"
)

type ollamaClient struct {
	apiClient *api.Client
	modelName string
	tracker   libtracker.ActivityTracker
}

// Config holds the connection settings for an Ollama backend.
type Config struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Tracker    libtracker.ActivityTracker
}

func newClient(cfg Config) (ollamaClient, error) {
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
		baseURL = "http://localhost:11434"
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return ollamaClient{}, fmt.Errorf("invalid ollama base URL %q: %w", baseURL, err)
	}
	return ollamaClient{
		apiClient: api.NewClient(parsed, httpClient),
		modelName: cfg.Model,
		tracker:   tracker,
	}, nil
}

func chatOptions(args []modelrepo.ChatArgument) map[string]any {
	cfg := &modelrepo.ChatConfig{}
	for _, arg := range args {
		arg.Apply(cfg)
	}

	options := make(map[string]any)
	if cfg.Temperature != nil {
		options["temperature"] = *cfg.Temperature
	}
	if cfg.MaxTokens != nil {
		options["num_predict"] = *cfg.MaxTokens
	}
	if cfg.TopP != nil {
		options["top_p"] = *cfg.TopP
	}
	if cfg.Seed != nil {
		options["seed"] = *cfg.Seed
	}
	return options
}

func apiMessages(messages []modelrepo.Message) []api.Message {
	out := make([]api.Message, 0, len(messages))
	for _, msg := range messages {
		out = append(out, api.Message{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return out
}
