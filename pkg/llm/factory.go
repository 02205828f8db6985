package llm

import (
	"fmt"

	"go.uber.org/zap"
)

// Provider names accepted by NewOracle.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// NewOracle creates the oracle client for the given provider. "openai"
// covers any OpenAI-compatible endpoint (the Endpoint field selects it).
func NewOracle(provider string, cfg *Config, logger *zap.Logger) (Oracle, error) {
	switch provider {
	case ProviderOpenAI:
		client, err := NewClient(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		return client, nil
	case ProviderAnthropic:
		client, err := NewAnthropicClient(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create anthropic client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown oracle provider %q", provider)
	}
}
