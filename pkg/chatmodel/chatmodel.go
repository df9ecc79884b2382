package chatmodel

import (
	"context"
	"fmt"
	"strings"
	"time"

	openaimodel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
)

type LLMBuilder interface {
	New(ctx context.Context) (model.ToolCallingChatModel, error)
}

var _ LLMBuilder = (*Config)(nil)

const (
	ProviderOpenAI     = "openai"
	ProviderAzure      = "azure"
	ProviderOpenRouter = "openrouter"
)

var (
	OpenRouterReasoningBlacklist = map[string]bool{
		"x-ai/grok-4.1-fast": true,
	}
)

// Config describes one OpenAI-compatible chat model endpoint. For Azure, BaseURL
// is the resource endpoint and Model the deployment name.
type Config struct {
	Provider           string        `envconfig:"PROVIDER" split_words:"true" default:"openrouter"`
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	APIVersion         string        `envconfig:"API_VERSION" split_words:"true" default:"2024-10-21"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken *int          `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"60s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`
}

func (c *Config) provider() string {
	p := strings.ToLower(strings.TrimSpace(c.Provider))
	if p == "" {
		return ProviderOpenRouter
	}
	return p
}

func (c *Config) New(ctx context.Context) (model.ToolCallingChatModel, error) {
	modelName := strings.TrimSpace(c.Model)

	conf := &openaimodel.ChatModelConfig{
		BaseURL:     strings.TrimRight(c.BaseURL, "/"),
		APIKey:      strings.TrimSpace(c.APIKey),
		Model:       modelName,
		MaxTokens:   c.MaxCompletionToken,
		Temperature: &c.Temperature,
		Timeout:     c.Timeout,
	}

	switch c.provider() {
	case ProviderAzure:
		conf.ByAzure = true
		conf.APIVersion = strings.TrimSpace(c.APIVersion)
	case ProviderOpenRouter:
		if OpenRouterReasoningBlacklist[modelName] {
			conf.ExtraFields = map[string]any{
				"reasoning": map[string]any{
					"exclude": true,
					"effort":  "none",
				},
			}
		}
	case ProviderOpenAI:
	default:
		return nil, fmt.Errorf("chatmodel: unsupported provider %q", c.Provider)
	}

	m, err := openaimodel.NewChatModel(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("chatmodel: create %s chat model: %w", c.provider(), err)
	}

	return m, nil
}

// NewClient creates an OpenAI SDK client for the configured provider.
func NewClient(cfg Config) *openaisdk.Client {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	var opts []option.RequestOption
	switch cfg.provider() {
	case ProviderAzure:
		opts = append(opts,
			azure.WithEndpoint(baseURL, strings.TrimSpace(cfg.APIVersion)),
			azure.WithAPIKey(apiKey),
		)
	default:
		opts = append(opts, option.WithAPIKey(apiKey))
		if baseURL != "" {
			opts = append(opts, option.WithBaseURL(baseURL))
		}
	}

	// OpenRouter attribution headers
	if cfg.SiteURL != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", cfg.SiteURL))
	}
	if cfg.SiteName != "" {
		opts = append(opts, option.WithHeader("X-Title", cfg.SiteName))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	client := openaisdk.NewClient(opts...)
	return &client
}
