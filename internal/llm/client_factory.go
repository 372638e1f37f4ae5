package llm

import (
	"context"
	"fmt"

	"github.com/vidurdewan/the-digest-sub001/internal/config"
)

// New builds a Client from config. An empty provider disables generation:
// the engine then always uses the deterministic fallback. Unknown providers
// are an error so a typo does not silently disable generation.
func New(ctx context.Context, cfg *config.Config) (Client, error) {
	switch cfg.LLM.Provider {
	case "":
		return nil, nil
	case "gemini":
		gc := DefaultGeminiConfig(cfg.LLM.APIKey)
		if cfg.LLM.Model != "" {
			gc.Model = cfg.LLM.Model
		}
		if cfg.LLM.BaseURL != "" {
			gc.BaseURL = cfg.LLM.BaseURL
		}
		gc.Timeout = cfg.LLMTimeout()
		return NewGeminiClient(gc), nil
	case "genai":
		return NewGenAIClient(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}
