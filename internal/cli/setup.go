package cli

import (
	"fmt"
	"os"

	"github.com/hollowshell/mnemo/internal/config"
	"github.com/hollowshell/mnemo/internal/engine"
	"github.com/hollowshell/mnemo/internal/llm"
	"github.com/hollowshell/mnemo/internal/store"
)

// loadConfig resolves config from file, env and flags, in that order.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return cfg, err
	}
	cfg.ApplyEnv()
	if flagDataDir != "" {
		cfg.Data.Dir = flagDataDir
	}
	if cfg.Data.Dir == "" {
		dir, err := store.DefaultDataDir()
		if err != nil {
			return cfg, fmt.Errorf("resolve data dir: %w", err)
		}
		cfg.Data.Dir = dir
	}
	return cfg, nil
}

// buildEngine opens the store and wires the LLM client and embedder.
func buildEngine(cfg config.Config) (*engine.Engine, error) {
	st, err := store.Open(cfg.Data.Dir, cfg.Agent.Name)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if cfg.Data.MaxEntries > 0 {
		st.MaxEntries = cfg.Data.MaxEntries
	}

	client, err := llm.NewClient(cfg.LLM)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: LLM not configured (%v), summaries degrade to truncation\n", err)
		client = nil
	}

	eng := engine.New(st, client, cfg)
	eng.SetEmbedder(selectEmbedder(cfg))
	return eng, nil
}

// selectEmbedder picks the configured provider, falling back to the hash
// embedder whenever the external one is unusable. Hash always works.
func selectEmbedder(cfg config.Config) engine.Embedder {
	switch cfg.Embedding.Provider {
	case "openai":
		if cfg.LLM.APIKey == "" {
			fmt.Fprintln(os.Stderr, "warning: openai embedder needs OPENAI_API_KEY, using hash embedder")
			break
		}
		return engine.NewOpenAIEmbedder(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.Embedding.Model)
	case "ollama":
		if !engine.ProbeOllama(cfg.LLM.OllamaURL, cfg.Embedding.Model) {
			fmt.Fprintln(os.Stderr, "warning: ollama unreachable, using hash embedder")
			break
		}
		return engine.NewOllamaEmbedder(cfg.LLM.OllamaURL, cfg.Embedding.Model, cfg.Embedding.Timeout)
	}
	return engine.NewHashEmbedder(cfg.Embedding.Dimensions)
}
