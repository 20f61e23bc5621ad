package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"docchat/config"
	"docchat/internal/adapter/embedding"
	"docchat/internal/adapter/llm"
	"docchat/internal/adapter/vectorindex"
	"docchat/internal/backoff"
	"docchat/internal/port"
)

func retryPolicy(cfg *config.Config) *backoff.Policy {
	return backoff.New(cfg.Retry.MaxAttempts, time.Duration(cfg.Retry.BaseDelayMS)*time.Millisecond)
}

// newEmbedder creates an embedder based on config.
func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "openai", "ollama":
		return embedding.NewOpenAIEmbedder(embedding.Options{
			APIKeyEnv:         cfg.Embedding.APIKeyEnv,
			Model:             cfg.Embedding.Model,
			BaseURL:           cfg.Embedding.BaseURL,
			Dimension:         cfg.Embedding.Dimension,
			BatchSize:         cfg.Embedding.BatchSize,
			RequestsPerMinute: cfg.Embedding.RequestsPerMinute,
		}, retryPolicy(cfg))
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}
}

// newIndex creates the configured vector index backend. The returned close
// function is a no-op for backends without resources to release.
func newIndex(ctx context.Context, cfg *config.Config, dimension int) (port.VectorIndex, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Index.Type {
	case "qdrant":
		idx := vectorindex.NewQdrantIndex(vectorindex.QdrantOptions{
			URL:        cfg.Index.Qdrant.URL,
			APIKeyEnv:  cfg.Index.Qdrant.APIKeyEnv,
			Collection: cfg.Index.Collection,
			Timeout:    time.Duration(cfg.Index.Qdrant.TimeoutSecs) * time.Second,
		})
		if err := idx.EnsureCollection(ctx, dimension); err != nil {
			return nil, nil, fmt.Errorf("failed to prepare collection %q: %w", cfg.Index.Collection, err)
		}
		return idx, noop, nil
	case "bolt":
		path := cfg.Index.BoltPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(GetRootDir(), path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create index directory: %w", err)
		}
		idx, err := vectorindex.NewBoltIndex(path, dimension)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open local index: %w", err)
		}
		return idx, idx.Close, nil
	case "memory":
		return vectorindex.NewMemoryIndex(dimension), noop, nil
	default:
		return nil, nil, fmt.Errorf("unsupported index type: %s", cfg.Index.Type)
	}
}

func newLLM(cfg *config.Config) (port.LLM, error) {
	return llm.NewOpenAILLM(llm.Options{
		APIKeyEnv:   cfg.LLM.APIKeyEnv,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}, retryPolicy(cfg))
}
