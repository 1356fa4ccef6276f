package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, DefaultChunkSize, cfg.Search.ChunkSize)
	assert.Equal(t, DefaultChunkOverlap, cfg.Search.ChunkOverlap)
	assert.Equal(t, DefaultRRFConstant, cfg.Search.RRFConstant)
	assert.Equal(t, "sqlite", cfg.Search.KeywordBackend)
	assert.Equal(t, "auto", cfg.Embeddings.Provider)
	assert.Equal(t, DefaultOllamaHost, cfg.Embeddings.OllamaHost)
	assert.Equal(t, DefaultConcurrency, cfg.Sync.Concurrency)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
version: 1
data_dir: /tmp/docindex-test
search:
  chunk_size: 256
  chunk_overlap: 32
  rrf_constant: 90
  keyword_backend: bleve
embeddings:
  provider: static
  model: test-model
  dimensions: 128
  batch_size: 8
sync:
  concurrency: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/docindex-test", cfg.DataDir)
	assert.Equal(t, 256, cfg.Search.ChunkSize)
	assert.Equal(t, 32, cfg.Search.ChunkOverlap)
	assert.Equal(t, 90, cfg.Search.RRFConstant)
	assert.Equal(t, "bleve", cfg.Search.KeywordBackend)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, "test-model", cfg.Embeddings.Model)
	assert.Equal(t, 2, cfg.Sync.Concurrency)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DOCINDEX_CHUNK_SIZE", "512")
	t.Setenv("DOCINDEX_EMBEDDINGS_PROVIDER", "static")
	t.Setenv("DOCINDEX_OLLAMA_HOST", "http://remote:11434")
	t.Setenv("DOCINDEX_SYNC_CONCURRENCY", "8")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 512, cfg.Search.ChunkSize)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, "http://remote:11434", cfg.Embeddings.OllamaHost)
	assert.Equal(t, 8, cfg.Sync.Concurrency)
}

func TestEnvOverrideIgnoresInvalidInt(t *testing.T) {
	t.Setenv("DOCINDEX_CHUNK_SIZE", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultChunkSize, cfg.Search.ChunkSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero chunk size",
			mutate:  func(c *Config) { c.Search.ChunkSize = 0 },
			wantErr: "chunk_size",
		},
		{
			name:    "overlap exceeds chunk size",
			mutate:  func(c *Config) { c.Search.ChunkOverlap = c.Search.ChunkSize },
			wantErr: "chunk_overlap",
		},
		{
			name:    "negative rrf constant",
			mutate:  func(c *Config) { c.Search.RRFConstant = -1 },
			wantErr: "rrf_constant",
		},
		{
			name:    "unknown keyword backend",
			mutate:  func(c *Config) { c.Search.KeywordBackend = "lucene" },
			wantErr: "keyword_backend",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Embeddings.Provider = "openai" },
			wantErr: "provider",
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.Sync.Concurrency = 0 },
			wantErr: "concurrency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.yaml")

	cfg := NewConfig()
	cfg.Search.ChunkSize = 300
	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 300, loaded.Search.ChunkSize)
}
