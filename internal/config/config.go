// Package config holds all mnemo configuration with code-level defaults,
// an optional JSON config file, and environment overrides applied by the
// CLI at startup.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config holds every tunable. The retrieval, feedback and decay constants
// are empirically chosen; they are configuration rather than literals so
// deployments can re-tune them without a rebuild.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Data      DataConfig      `json:"data"`
	Agent     AgentConfig     `json:"agent"`
	LLM       LLMConfig       `json:"llm"`
	Embedding EmbeddingConfig `json:"embedding"`
	Retrieval RetrievalConfig `json:"retrieval"`
	Feedback  FeedbackConfig  `json:"feedback"`
	Decay     DecayConfig     `json:"decay"`
	Dialogue  DialogueConfig  `json:"dialogue"`
}

type ServerConfig struct {
	Bind string `json:"bind"`
	Port int    `json:"port"`
}

type DataConfig struct {
	Dir        string `json:"dir"`         // resolved at runtime when empty
	MaxEntries int    `json:"max_entries"` // entry table cap before eviction
}

type AgentConfig struct {
	Name string `json:"name"` // agent username; its own entries are global
}

type LLMConfig struct {
	Provider    string        `json:"provider"` // "openai", "ollama", "" = disabled
	Model       string        `json:"model"`
	APIKey      string        `json:"api_key"`
	BaseURL     string        `json:"base_url"` // OpenAI-compatible endpoint override
	OllamaURL   string        `json:"ollama_url"`
	OllamaModel string        `json:"ollama_model"`
	Timeout     time.Duration `json:"timeout"`
}

type EmbeddingConfig struct {
	Provider   string        `json:"provider"` // "hash", "openai", "ollama"
	Model      string        `json:"model"`
	Dimensions int           `json:"dimensions"` // hash embedder vector size
	Timeout    time.Duration `json:"timeout"`
}

type RetrievalConfig struct {
	Mode  string `json:"mode"` // default buildContext mode
	Limit int    `json:"limit"`

	// Weighted-mode signal shaping.
	RelevanceScale       float64       `json:"relevance_scale"`
	RecencyHalfLife      time.Duration `json:"recency_half_life"`
	ImportanceSaturation float64       `json:"importance_saturation"`
	RelevanceWeight      float64       `json:"relevance_weight"`
	RecencyWeight        float64       `json:"recency_weight"`
	ImportanceWeight     float64       `json:"importance_weight"`
	MinScore             float64       `json:"min_score"`
	MinRelevance         float64       `json:"min_relevance"`

	// Hybrid fusion.
	SparseK            int     `json:"sparse_k"`
	DenseK             int     `json:"dense_k"`
	RRFK               float64 `json:"rrf_k"`
	LexicalWeight      float64 `json:"lexical_weight"`
	DenseWeight        float64 `json:"dense_weight"`
	MinDenseSimilarity float64 `json:"min_dense_similarity"`

	// Location injection.
	NearMax      int     `json:"near_max"`
	AlwaysRadius float64 `json:"always_radius"`
	NearRadius   float64 `json:"near_radius"`

	// Dedup.
	SummaryKeyLen int `json:"summary_key_len"`
}

type FeedbackConfig struct {
	WindowTTL         time.Duration `json:"window_ttl"`
	MaxWindows        int           `json:"max_windows"`
	PositiveThreshold float64       `json:"positive_threshold"`
	NegativeThreshold float64       `json:"negative_threshold"`
	IgnoredScore      float64       `json:"ignored_score"`
	TickInterval      time.Duration `json:"tick_interval"`
}

type DecayConfig struct {
	After    time.Duration `json:"after"`    // idle time before decay applies
	Rate     float64       `json:"rate"`     // fraction of count removed per sweep
	Interval time.Duration `json:"interval"` // sweep period
}

type DialogueConfig struct {
	Interval      time.Duration `json:"interval"` // aggregation sweep period
	MaxSummaryLen int           `json:"max_summary_len"`
}

// Default returns a Config with the shipped defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{Bind: "127.0.0.1", Port: 37737},
		Data:   DataConfig{MaxEntries: 500},
		Agent:  AgentConfig{Name: "mnemo"},
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			OllamaURL:   "http://localhost:11434",
			OllamaModel: "llama3.2",
			Timeout:     30 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Provider:   "hash",
			Model:      "text-embedding-3-small",
			Dimensions: 256,
			Timeout:    10 * time.Second,
		},
		Retrieval: RetrievalConfig{
			Mode:                 "weighted",
			Limit:                5,
			RelevanceScale:       18,
			RecencyHalfLife:      14 * 24 * time.Hour,
			ImportanceSaturation: 20,
			RelevanceWeight:      1,
			RecencyWeight:        0,
			ImportanceWeight:     0,
			MinScore:             0.3,
			MinRelevance:         0.06,
			SparseK:              20,
			DenseK:               20,
			RRFK:                 60,
			LexicalWeight:        0.5,
			DenseWeight:          0.5,
			MinDenseSimilarity:   0.1,
			NearMax:              3,
			AlwaysRadius:         16,
			NearRadius:           64,
			SummaryKeyLen:        24,
		},
		Feedback: FeedbackConfig{
			WindowTTL:         30 * time.Second,
			MaxWindows:        20,
			PositiveThreshold: 0.3,
			NegativeThreshold: -0.3,
			IgnoredScore:      -0.4,
			TickInterval:      5 * time.Second,
		},
		Decay: DecayConfig{
			After:    7 * 24 * time.Hour,
			Rate:     0.1,
			Interval: 6 * time.Hour,
		},
		Dialogue: DialogueConfig{
			Interval:      10 * time.Minute,
			MaxSummaryLen: 50,
		},
	}
}

// Load reads cfg from a JSON file over the defaults. A missing path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables onto the config.
func (c *Config) ApplyEnv() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "openai"
		}
	}
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		c.LLM.BaseURL = base
	}
	if url := os.Getenv("OLLAMA_URL"); url != "" {
		c.LLM.OllamaURL = url
	}
	if dir := os.Getenv("MNEMO_DATA_DIR"); dir != "" {
		c.Data.Dir = dir
	}
	if name := os.Getenv("MNEMO_AGENT_NAME"); name != "" {
		c.Agent.Name = name
	}
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
