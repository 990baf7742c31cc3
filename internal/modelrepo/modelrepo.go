// Package modelrepo abstracts the external completion service. Providers
// implement non-streamed chat (used by the summarizer) and streamed chat
// (used by the reply cycle). Every provider failure is classified under
// ErrCompletionService so callers can distinguish it from storage errors.
package modelrepo

import (
	"context"
	"errors"
)

// ErrCompletionService marks any failure of the external completion service:
// transport errors, non-200 responses, and mid-stream aborts.
var ErrCompletionService = errors.New("modelrepo: completion service failure")

// Message is one role/content pair sent to or received from the service.
// Only these two fields ever cross the system boundary.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResult is the outcome of a non-streamed completion.
type ChatResult struct {
	Message Message
}

// StreamParcel is one unit of a streamed completion: either a text fragment
// or a terminal error. The fragment sequence is finite and not restartable;
// concatenating Data of all parcels in order yields the full reply.
type StreamParcel struct {
	Data  string
	Error error
}

// LLMChatClient performs a single non-streamed completion.
type LLMChatClient interface {
	Chat(ctx context.Context, messages []Message, args ...ChatArgument) (ChatResult, error)
}

// LLMStreamClient performs a streamed completion over the full message
// history. The channel is closed after the terminal signal or a failure.
type LLMStreamClient interface {
	ChatStream(ctx context.Context, messages []Message, args ...ChatArgument) (<-chan *StreamParcel, error)
}

// ChatConfig collects per-request generation options.
type ChatConfig struct {
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
	Seed        *int
}

// ChatArgument mutates a ChatConfig.
type ChatArgument interface {
	Apply(cfg *ChatConfig)
}

type temperatureArg float64

func (a temperatureArg) Apply(cfg *ChatConfig) {
	v := float64(a)
	cfg.Temperature = &v
}

// WithTemperature sets the sampling temperature.
func WithTemperature(v float64) ChatArgument { return temperatureArg(v) }

type maxTokensArg int

func (a maxTokensArg) Apply(cfg *ChatConfig) {
	v := int(a)
	cfg.MaxTokens = &v
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(v int) ChatArgument { return maxTokensArg(v) }
