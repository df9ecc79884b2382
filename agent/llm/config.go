package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/claims-responder-agent/agent/contract"
	chatmodelx "github.com/tanpawarit/claims-responder-agent/pkg/chatmodel"
	retryx "github.com/tanpawarit/claims-responder-agent/pkg/retry"
)

type Config struct {
	Provider           string        `envconfig:"PROVIDER" split_words:"true" default:"openrouter"`
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	APIVersion         string        `envconfig:"API_VERSION" split_words:"true" default:"2024-10-21"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.2"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"60s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	PlannerModel         string  `envconfig:"PLANNER_MODEL" split_words:"true"`
	FinalizerModel       string  `envconfig:"FINALIZER_MODEL" split_words:"true"`
	PlannerTemperature   float32 `envconfig:"PLANNER_TEMPERATURE" split_words:"true" default:"-1"`
	FinalizerTemperature float32 `envconfig:"FINALIZER_TEMPERATURE" split_words:"true" default:"0"`

	// PlannerCallTimeout bounds one planner invocation; a timeout is retried.
	PlannerCallTimeout   time.Duration `envconfig:"PLANNER_CALL_TIMEOUT" split_words:"true" default:"45s"`
	FinalizerCallTimeout time.Duration `envconfig:"FINALIZER_CALL_TIMEOUT" split_words:"true" default:"60s"`
	RatePerSecond        float64       `envconfig:"RATE_PER_SECOND" split_words:"true" default:"2"`
	RateBurst            int           `envconfig:"RATE_BURST" split_words:"true" default:"4"`
	Retry                retryx.Config `envconfig:"RETRY"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: llm api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

func (c Config) ChatModelFor(agentType contractx.AgentType) chatmodelx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	switch agentType {
	case contractx.AgentTypePlanner:
		if v := strings.TrimSpace(c.PlannerModel); v != "" {
			modelName = v
		}
		if c.PlannerTemperature >= 0 {
			temp = c.PlannerTemperature
		}
	case contractx.AgentTypeFinalizer:
		if v := strings.TrimSpace(c.FinalizerModel); v != "" {
			modelName = v
		}
		if c.FinalizerTemperature >= 0 {
			temp = c.FinalizerTemperature
		}
	}

	maxCompletionToken := c.MaxCompletionToken
	return chatmodelx.Config{
		Provider:           strings.TrimSpace(c.Provider),
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		APIVersion:         strings.TrimSpace(c.APIVersion),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
