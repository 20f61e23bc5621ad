package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Chunking.Size != 500 {
		t.Errorf("expected Size=500, got %d", cfg.Chunking.Size)
	}
	if cfg.Chunking.Overlap != 20 {
		t.Errorf("expected Overlap=20, got %d", cfg.Chunking.Overlap)
	}
	if cfg.Retrieval.TopK != 4 {
		t.Errorf("expected TopK=4, got %d", cfg.Retrieval.TopK)
	}
	if cfg.Embedding.BatchSize != 100 {
		t.Errorf("expected BatchSize=100, got %d", cfg.Embedding.BatchSize)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("expected MaxAttempts=3, got %d", cfg.Retry.MaxAttempts)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/docchat.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "docchat.yaml")

	content := `
chunking:
  size: 200
  overlap: 40
retrieval:
  top_k: 8
index:
  type: memory
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Chunking.Size != 200 {
		t.Errorf("expected Size=200, got %d", cfg.Chunking.Size)
	}
	if cfg.Chunking.Overlap != 40 {
		t.Errorf("expected Overlap=40, got %d", cfg.Chunking.Overlap)
	}
	if cfg.Retrieval.TopK != 8 {
		t.Errorf("expected TopK=8, got %d", cfg.Retrieval.TopK)
	}
	if cfg.Index.Type != "memory" {
		t.Errorf("expected index type memory, got %s", cfg.Index.Type)
	}
	// Unset fields keep defaults
	if cfg.Embedding.Model != "text-embedding-ada-002" {
		t.Errorf("expected default embedding model, got %s", cfg.Embedding.Model)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "docchat.yaml")

	if err := os.WriteFile(configPath, []byte("chunking: ["), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestSaveAndReload(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "docchat.yaml")

	cfg := DefaultConfig()
	cfg.Retrieval.TopK = 7
	if err := cfg.Save(configPath); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Retrieval.TopK != 7 {
		t.Errorf("expected TopK=7 after reload, got %d", loaded.Retrieval.TopK)
	}
}
