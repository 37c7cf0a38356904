package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"shopassist.dev/assistant/internal/config"
)

// NewCompleterFromConfig builds the completer selected by LLM_PROVIDER.
// The returned close func is never nil.
func NewCompleterFromConfig(ctx context.Context, cfg config.Config, logger *zap.Logger) (Completer, func(), error) {
	noop := func() {}

	switch cfg.LLMProvider {
	case "gemini":
		g, err := NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
		if err != nil {
			return nil, noop, err
		}
		return g, g.Close, nil

	case "openai":
		o, err := NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create OpenAI client: %w", err)
		}
		return o, noop, nil

	case "anthropic":
		a, err := NewAnthropic(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create Anthropic client: %w", err)
		}
		return a, noop, nil

	case "ollama":
		o, err := NewOllama(cfg.OllamaModel)
		if err != nil {
			return nil, noop, err
		}
		return o, noop, nil

	default:
		return nil, noop, fmt.Errorf("unsupported LLM_PROVIDER: %s (supported: gemini, openai, anthropic, ollama)", cfg.LLMProvider)
	}
}
