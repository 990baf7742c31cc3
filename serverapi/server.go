// Package serverapi assembles the HTTP surface: services, decorators,
// providers, and routes, driven by a Config loaded from the environment and
// an optional YAML file.
package serverapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/contenox/chatlog/adminservice"
	"github.com/contenox/chatlog/apiframework"
	"github.com/contenox/chatlog/chatservice"
	"github.com/contenox/chatlog/internal/adminapi"
	"github.com/contenox/chatlog/internal/chatapi"
	"github.com/contenox/chatlog/internal/modelrepo"
	"github.com/contenox/chatlog/internal/modelrepo/ollama"
	"github.com/contenox/chatlog/internal/modelrepo/openai"
	"github.com/contenox/chatlog/libauth"
	libbus "github.com/contenox/chatlog/libbus"
	libdb "github.com/contenox/chatlog/libdbexec"
	"github.com/contenox/chatlog/libtracker"
	"github.com/contenox/chatlog/messagestore"
	"github.com/contenox/chatlog/summarizer"
	"gopkg.in/yaml.v3"
)

// Config carries every runtime setting. Fields are populated from the
// environment (lower-cased variable names) and optionally from a YAML file.
type Config struct {
	DatabaseURL string `json:"database_url" yaml:"database_url"`
	SQLitePath  string `json:"sqlite_path" yaml:"sqlite_path"`
	Addr        string `json:"addr" yaml:"addr"`
	Port        string `json:"port" yaml:"port"`

	NATSURL      string `json:"nats_url" yaml:"nats_url"`
	NATSUser     string `json:"nats_user" yaml:"nats_user"`
	NATSPassword string `json:"nats_password" yaml:"nats_password"`

	ChatProvider  string `json:"chat_provider" yaml:"chat_provider"`
	ChatModel     string `json:"chat_model" yaml:"chat_model"`
	SummaryModel  string `json:"summary_model" yaml:"summary_model"`
	SummaryWindow string `json:"summary_window" yaml:"summary_window"`

	OpenAIAPIKey  string `json:"openai_api_key" yaml:"openai_api_key"`
	OpenAIBaseURL string `json:"openai_base_url" yaml:"openai_base_url"`
	OllamaBaseURL string `json:"ollama_base_url" yaml:"ollama_base_url"`

	AdminPasswordHash string `json:"admin_password_hash" yaml:"admin_password_hash"`
	JWTSecret         string `json:"jwt_secret" yaml:"jwt_secret"`

	ConfigFile string `json:"config_file" yaml:"-"`
}

// SummaryWindowSize parses the configured trailing window, falling back to
// the summarizer default when unset or invalid.
func (c *Config) SummaryWindowSize() int {
	n, err := strconv.Atoi(c.SummaryWindow)
	if err != nil || n <= 0 {
		return summarizer.DefaultWindowSize
	}
	return n
}

// LoadConfig fills cfg from the process environment. Variable names map to
// json tags lower-cased, so DATABASE_URL populates database_url.
func LoadConfig[T any](cfg *T) error {
	if cfg == nil {
		return fmt.Errorf("config pointer is nil")
	}
	config := map[string]string{}
	for _, kvPair := range os.Environ() {
		ar := strings.SplitN(kvPair, "=", 2)
		if len(ar) < 2 {
			continue
		}
		key := strings.ToLower(ar[0])
		value := ar[1]
		config[key] = value
	}

	b, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal env vars: %w", err)
	}
	err = json.Unmarshal(b, cfg)
	if err != nil {
		return fmt.Errorf("failed to unmarshal into config struct: %w", err)
	}

	return nil
}

// MergeConfigFile overlays values from the YAML file named by cfg.ConfigFile.
// Environment values win; the file only fills fields the environment left
// empty.
func MergeConfigFile(cfg *Config) error {
	if cfg.ConfigFile == "" {
		return nil
	}
	data, err := os.ReadFile(cfg.ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cfg.ConfigFile, err)
	}
	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", cfg.ConfigFile, err)
	}
	if err := mergo.Merge(cfg, fileCfg); err != nil {
		return fmt.Errorf("failed to merge config file %s: %w", cfg.ConfigFile, err)
	}
	return nil
}

// newCompletionClients builds the chat and summary completion clients for the
// configured provider. The summary model defaults to the chat model.
func newCompletionClients(config *Config, tracker libtracker.ActivityTracker) (modelrepo.LLMStreamClient, modelrepo.LLMChatClient, error) {
	summaryModel := config.SummaryModel
	if summaryModel == "" {
		summaryModel = config.ChatModel
	}
	switch config.ChatProvider {
	case "", "openai":
		stream := openai.NewOpenAIStreamClient(openai.Config{
			BaseURL: config.OpenAIBaseURL,
			APIKey:  config.OpenAIAPIKey,
			Model:   config.ChatModel,
			Tracker: tracker,
		})
		chat := openai.NewOpenAIChatClient(openai.Config{
			BaseURL: config.OpenAIBaseURL,
			APIKey:  config.OpenAIAPIKey,
			Model:   summaryModel,
			Tracker: tracker,
		})
		return stream, chat, nil
	case "ollama":
		stream, err := ollama.NewOllamaStreamClient(ollama.Config{
			BaseURL: config.OllamaBaseURL,
			Model:   config.ChatModel,
			Tracker: tracker,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build ollama stream client: %w", err)
		}
		chat, err := ollama.NewOllamaChatClient(ollama.Config{
			BaseURL: config.OllamaBaseURL,
			Model:   summaryModel,
			Tracker: tracker,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build ollama chat client: %w", err)
		}
		return stream, chat, nil
	default:
		return nil, nil, fmt.Errorf("unknown chat provider %q", config.ChatProvider)
	}
}

func New(
	ctx context.Context,
	mux *http.ServeMux,
	nodeInstanceID string,
	config *Config,
	dbInstance libdb.DBManager,
	pubsub libbus.Messenger,
) (func() error, error) {
	cleanup := func() error { return nil }
	stdOuttracker := libtracker.NewLogActivityTracker(slog.Default())
	serveropsChainedTracker := libtracker.ChainedTracker{
		stdOuttracker,
	}
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		apiframework.Error(w, r, apiframework.ErrNotFound, apiframework.ListOperation)
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		// OK
	})
	version := apiframework.GetVersion()
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		apiframework.Encode(w, r, http.StatusOK, apiframework.AboutServer{Version: version, NodeInstanceID: nodeInstanceID})
	})

	store := messagestore.New(dbInstance.WithoutTransaction())

	streamClient, chatClient, err := newCompletionClients(config, serveropsChainedTracker)
	if err != nil {
		return cleanup, err
	}

	summarizerService := summarizer.New(chatClient, config.SummaryWindowSize())
	summarizerService = summarizer.WithActivityTracker(summarizerService, serveropsChainedTracker)

	chatService := chatservice.New(store, streamClient, summarizerService, pubsub)
	chatService = chatservice.WithActivityTracker(chatService, serveropsChainedTracker)
	chatapi.AddChatRoutes(mux, chatService)

	adminService := adminservice.New(store)
	adminService = adminservice.WithActivityTracker(adminService, serveropsChainedTracker)
	authManager, err := libauth.NewManager(config.JWTSecret, 12*time.Hour)
	if err != nil {
		return cleanup, fmt.Errorf("failed to build auth manager: %w", err)
	}
	adminapi.AddAdminRoutes(mux, adminService, authManager, config.AdminPasswordHash, pubsub)

	return cleanup, nil
}
