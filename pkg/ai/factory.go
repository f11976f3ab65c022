package ai

import (
	"fmt"

	"supportdesk-backend/pkg/gemini"

	"go.uber.org/zap"
)

// DynamicConfig holds AI provider configuration.
// Ollama settings are read through getters so they can change at runtime.
type DynamicConfig struct {
	Provider ProviderType

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	GeminiAPIKey string
	GeminiModel  string

	GetOllamaBaseURL func() string
	GetOllamaModel   func() string
}

// NewDraftService creates a DraftService based on the config.
// Switch AI provider by changing cfg.Provider.
func NewDraftService(cfg DynamicConfig, logger *zap.Logger) (DraftService, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for OpenAI provider")
		}
		return NewOpenAIService(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL), nil

	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		return gemini.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel), nil

	case ProviderOllama:
		return newOllamaFromConfig(cfg), nil

	default:
		// Hosted providers first when keys are present, local Ollama last
		var chain []NamedProvider
		if cfg.OpenAIAPIKey != "" {
			chain = append(chain, NamedProvider{Name: "openai", Service: NewOpenAIService(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)})
		}
		if cfg.GeminiAPIKey != "" {
			chain = append(chain, NamedProvider{Name: "gemini", Service: gemini.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel)})
		}
		chain = append(chain, NamedProvider{Name: "ollama", Service: newOllamaFromConfig(cfg)})
		if len(chain) == 1 {
			return chain[0].Service, nil
		}
		return NewFallbackService(logger, chain...), nil
	}
}

func newOllamaFromConfig(cfg DynamicConfig) *OllamaService {
	if cfg.GetOllamaBaseURL != nil && cfg.GetOllamaModel != nil {
		return NewOllamaServiceWithGetters(cfg.GetOllamaBaseURL, cfg.GetOllamaModel)
	}
	return NewOllamaService("", "")
}
