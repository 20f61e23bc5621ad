package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the docchat tool.
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Index     IndexConfig     `yaml:"index"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Chat      ChatConfig      `yaml:"chat"`
	Retry     RetryConfig     `yaml:"retry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	Provider          string `yaml:"provider"`    // "openai", "ollama", "mock"
	Model             string `yaml:"model"`       // e.g., "text-embedding-ada-002"
	APIKeyEnv         string `yaml:"api_key_env"` // Environment variable for API key
	BaseURL           string `yaml:"base_url"`
	Dimension         int    `yaml:"dimension"`
	BatchSize         int    `yaml:"batch_size"`
	RequestsPerMinute int    `yaml:"requests_per_minute"` // 0 disables rate limiting
}

// LLMConfig holds language model configuration.
type LLMConfig struct {
	Model       string  `yaml:"model"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// IndexConfig selects and configures the vector index backend.
type IndexConfig struct {
	Type       string       `yaml:"type"` // "qdrant", "bolt", "memory"
	Collection string       `yaml:"collection"`
	Qdrant     QdrantConfig `yaml:"qdrant"`
	BoltPath   string       `yaml:"bolt_path"`
}

// QdrantConfig contains connection details for a Qdrant vector index.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// ChunkingConfig configures how documents are split into chunks.
type ChunkingConfig struct {
	Size    int `yaml:"size"`    // chunk size in characters
	Overlap int `yaml:"overlap"` // characters shared with the previous chunk
}

// RetrievalConfig holds retrieval configuration.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// ChatConfig holds chat engine configuration.
type ChatConfig struct {
	HistoryTurns int `yaml:"history_turns"` // max user/assistant pairs kept in the prompt
	TokenBudget  int `yaml:"token_budget"`  // approximate token budget for history
}

// RetryConfig bounds retries for transient provider failures.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	BaseDelayMS int `yaml:"base_delay_ms"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider:          "openai",
			Model:             "text-embedding-ada-002",
			APIKeyEnv:         "OPENAI_API_KEY",
			BaseURL:           "https://api.openai.com/v1",
			Dimension:         1536,
			BatchSize:         100,
			RequestsPerMinute: 0,
		},
		LLM: LLMConfig{
			Model:       "gpt-3.5-turbo",
			APIKeyEnv:   "OPENAI_API_KEY",
			BaseURL:     "https://api.openai.com/v1",
			Temperature: 0,
			MaxTokens:   1024,
		},
		Index: IndexConfig{
			Type:       "qdrant",
			Collection: "doc-query-app",
			Qdrant: QdrantConfig{
				URL:         "http://localhost:6333",
				APIKeyEnv:   "QDRANT_API_KEY",
				TimeoutSecs: 15,
			},
			BoltPath: ".docchat/index.db",
		},
		Chunking: ChunkingConfig{
			Size:    500,
			Overlap: 20,
		},
		Retrieval: RetrievalConfig{
			TopK: 4,
		},
		Chat: ChatConfig{
			HistoryTurns: 10,
			TokenBudget:  3000,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelayMS: 500,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for docchat.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "docchat.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".docchat", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
