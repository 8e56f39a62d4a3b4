package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "brain_os_docs", cfg.Collection.Name)
	assert.Equal(t, 384, cfg.Collection.DenseDimension)
	assert.Equal(t, 10, cfg.Ingest.BatchSize)
	assert.Equal(t, 5, cfg.Query.TopK)
	assert.InDelta(t, 0.7, cfg.Query.DenseWeight, 1e-9)
	assert.InDelta(t, 0.3, cfg.Query.SparseWeight, 1e-9)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, "http://localhost:11434", cfg.Embedding.Ollama.BaseURL())
	assert.Equal(t, "llama3.2", cfg.Synthesis.Model)
	assert.Equal(t, "local", cfg.Bridge.Backend)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
collection:
  name: research_notes
  dense_dimension: 768
query:
  top_k: 8
  dense_weight: 0.5
  sparse_weight: 0.5
embedding:
  provider: deterministic
bridge:
  backend: minio
  minio:
    endpoint: storage:9000
    bucket: snapshots
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "research_notes", cfg.Collection.Name)
	assert.Equal(t, 768, cfg.Collection.DenseDimension)
	assert.Equal(t, 8, cfg.Query.TopK)
	assert.InDelta(t, 0.5, cfg.Query.DenseWeight, 1e-9)
	assert.Equal(t, "deterministic", cfg.Embedding.Provider)
	assert.Equal(t, "minio", cfg.Bridge.Backend)
	assert.Equal(t, "storage:9000", cfg.Bridge.MinIO.Endpoint)

	// File values unset still get defaults.
	assert.Equal(t, 10, cfg.Ingest.BatchSize)
	assert.Equal(t, "MINIO_ACCESS_KEY", cfg.Bridge.MinIO.AccessKeyEnv)
}

func TestEnvOverlay(t *testing.T) {
	t.Setenv("COLLECTION_NAME", "env_docs")
	t.Setenv("INGEST_BATCH_SIZE", "25")
	t.Setenv("USE_MOCK_CLIENTS", "true")
	t.Setenv("OLLAMA_HOST", "gpu-box")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "env_docs", cfg.Collection.Name)
	assert.Equal(t, 25, cfg.Ingest.BatchSize)
	assert.True(t, cfg.Capabilities.Mock)
	assert.Equal(t, "http://gpu-box:11434", cfg.Embedding.Ollama.BaseURL())
	assert.Equal(t, "http://gpu-box:11434", cfg.Synthesis.Ollama.BaseURL())
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"EmptyCollection", func(c *Config) { c.Collection.Name = "" }},
		{"ZeroDimension", func(c *Config) { c.Collection.DenseDimension = 0 }},
		{"NegativeDimension", func(c *Config) { c.Collection.DenseDimension = -1 }},
		{"ZeroBatch", func(c *Config) { c.Ingest.BatchSize = 0 }},
		{"TopKTooLarge", func(c *Config) { c.Query.TopK = 21 }},
		{"NegativeWeight", func(c *Config) { c.Query.DenseWeight = -0.1 }},
		{"ZeroWeights", func(c *Config) {
			c.Query.DenseWeight = 0
			c.Query.SparseWeight = 0
		}},
		{"UnknownProvider", func(c *Config) { c.Embedding.Provider = "cohere" }},
		{"UnknownBackend", func(c *Config) { c.Bridge.Backend = "ftp" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("query:\n  top_k: 99\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
