// Package oracle provides the model selection oracles: deterministic rules,
// a fixed list, and language-model backed oracles.
package oracle

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ShayCichocki/foldcrew/internal/selection"
)

// Provider names accepted by New.
const (
	ProviderRules     = "rules"
	ProviderStatic    = "static"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
	ProviderOpenAI    = "openai"
)

// Config selects and configures an oracle.
type Config struct {
	Provider string
	// Model is the language model id. Provider default when empty.
	Model string
	// StaticModels is the fixed list for the static provider.
	StaticModels []string
	// AnthropicAPIKey authenticates the anthropic provider.
	AnthropicAPIKey string
	// OpenAIAPIKey authenticates the openai provider.
	OpenAIAPIKey string
	// AnthropicBaseURL overrides the Anthropic API endpoint. Ignored for
	// bedrock.
	AnthropicBaseURL string
	// OpenAIBaseURL points the openai provider at a compatible endpoint.
	OpenAIBaseURL string
	AWSRegion     string
	AWSProfile    string
	// Timeout bounds a single oracle call.
	Timeout time.Duration
}

// DefaultTimeout bounds a language model call when Config.Timeout is unset.
const DefaultTimeout = 2 * time.Minute

// New builds the oracle named by cfg.Provider. An empty provider means rules.
func New(cfg Config, logger *zap.Logger) (selection.Oracle, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderRules:
		return RulesOracle{}, nil
	case ProviderStatic:
		return NewStaticOracle(cfg.StaticModels), nil
	case ProviderAnthropic, ProviderBedrock:
		bedrock := strings.EqualFold(strings.TrimSpace(cfg.Provider), ProviderBedrock)
		baseURL := cfg.AnthropicBaseURL
		if bedrock {
			baseURL = ""
		}
		client, err := NewAnthropicClient(AnthropicClientConfig{
			Model:         cfg.Model,
			APIKey:        cfg.AnthropicAPIKey,
			BaseURL:       baseURL,
			UseAWSBedrock: bedrock,
			AWSRegion:     cfg.AWSRegion,
			AWSProfile:    cfg.AWSProfile,
		})
		if err != nil {
			return nil, fmt.Errorf("create anthropic oracle: %w", err)
		}
		return NewLLMOracle(client, cfg.Timeout, logger), nil
	case ProviderOpenAI:
		client, err := NewOpenAIClient(OpenAIClientConfig{
			Model:   cfg.Model,
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("create openai oracle: %w", err)
		}
		return NewLLMOracle(client, cfg.Timeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown oracle provider %q", cfg.Provider)
	}
}
