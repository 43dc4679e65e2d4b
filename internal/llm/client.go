// Package llm abstracts the outbound completion capability used for
// dialogue summarization. Providers are best-effort: callers treat any
// error as "no summary available" and fall back to deterministic output.
package llm

import (
	"context"
	"fmt"

	"github.com/hollowshell/mnemo/internal/config"
)

// Client is the interface for completion providers.
type Client interface {
	Complete(ctx context.Context, prompt string) (*Response, error)
}

// Response holds the result of a completion.
type Response struct {
	Content    string
	Provider   string
	TokensUsed int
}

// NewClient creates a client for the configured provider. An empty provider
// returns (nil, nil): summarization then degrades to truncation.
func NewClient(cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires OPENAI_API_KEY or config")
		}
		model := cfg.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		return NewOpenAI(cfg.APIKey, cfg.BaseURL, model), nil
	case "ollama":
		url := cfg.OllamaURL
		if url == "" {
			url = "http://localhost:11434"
		}
		model := cfg.OllamaModel
		if model == "" {
			model = "llama3.2"
		}
		return NewOllama(url, model), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
}
