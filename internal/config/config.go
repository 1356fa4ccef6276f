// Package config loads and validates docindex configuration from YAML
// files and DOCINDEX_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete docindex configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	DataDir    string           `yaml:"data_dir" json:"data_dir"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Sync       SyncConfig       `yaml:"sync" json:"sync"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// SearchConfig configures chunking and hybrid retrieval parameters.
type SearchConfig struct {
	// ChunkSize is the target chunk size in tokens.
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`

	// ChunkOverlap is the token overlap between adjacent chunks.
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`

	// RRFConstant is the reciprocal rank fusion smoothing parameter (k).
	// Higher values reduce the impact of rank differences.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// MaxResults caps the result count a single query may request.
	MaxResults int `yaml:"max_results" json:"max_results"`

	// KeywordBackend selects the keyword index backend.
	// Options: "sqlite" (default, FTS5) or "bleve".
	KeywordBackend string `yaml:"keyword_backend" json:"keyword_backend"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the embedder: "ollama", "static", or "auto".
	Provider string `yaml:"provider" json:"provider"`

	// Model is the embedding model name.
	Model string `yaml:"model" json:"model"`

	// RerankModel is an optional second model used for re-ranking.
	// Empty disables re-ranking.
	RerankModel string `yaml:"rerank_model" json:"rerank_model"`

	// Dimensions is the embedding vector width.
	Dimensions int `yaml:"dimensions" json:"dimensions"`

	// BatchSize is the number of texts embedded per provider call.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// OllamaHost is the Ollama API endpoint.
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
}

// SyncConfig configures the sync coordinator.
type SyncConfig struct {
	// Concurrency is the number of documents fetched and indexed in parallel.
	Concurrency int `yaml:"concurrency" json:"concurrency"`
}

// LoggingConfig configures structured logging output.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// Defaults for configuration values.
const (
	DefaultChunkSize    = 400
	DefaultChunkOverlap = 40
	DefaultRRFConstant  = 60
	DefaultMaxResults   = 50
	DefaultConcurrency  = 4
	DefaultBatchSize    = 32
	DefaultDimensions   = 768
	DefaultOllamaHost   = "http://localhost:11434"
	DefaultModel        = "nomic-embed-text"
)

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		DataDir: defaultDataDir(),
		Search: SearchConfig{
			ChunkSize:      DefaultChunkSize,
			ChunkOverlap:   DefaultChunkOverlap,
			RRFConstant:    DefaultRRFConstant,
			MaxResults:     DefaultMaxResults,
			KeywordBackend: "sqlite",
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "auto",
			Model:      DefaultModel,
			Dimensions: DefaultDimensions,
			BatchSize:  DefaultBatchSize,
			OllamaHost: DefaultOllamaHost,
		},
		Sync: SyncConfig{
			Concurrency: DefaultConcurrency,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "docindex")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".docindex"
	}
	return filepath.Join(home, ".local", "share", "docindex")
}

// Load reads configuration from the given path (empty path skips the
// file), applies environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies DOCINDEX_* environment variable overrides.
// Env vars take priority over file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DOCINDEX_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("DOCINDEX_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.ChunkSize = n
		}
	}
	if v := os.Getenv("DOCINDEX_CHUNK_OVERLAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.ChunkOverlap = n
		}
	}
	if v := os.Getenv("DOCINDEX_RRF_CONSTANT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.RRFConstant = n
		}
	}
	if v := os.Getenv("DOCINDEX_KEYWORD_BACKEND"); v != "" {
		c.Search.KeywordBackend = v
	}
	if v := os.Getenv("DOCINDEX_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("DOCINDEX_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("DOCINDEX_RERANK_MODEL"); v != "" {
		c.Embeddings.RerankModel = v
	}
	if v := os.Getenv("DOCINDEX_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("DOCINDEX_SYNC_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Sync.Concurrency = n
		}
	}
	if v := os.Getenv("DOCINDEX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Search.ChunkSize <= 0 {
		return fmt.Errorf("search.chunk_size must be positive, got %d", c.Search.ChunkSize)
	}
	if c.Search.ChunkOverlap < 0 {
		return fmt.Errorf("search.chunk_overlap must be non-negative, got %d", c.Search.ChunkOverlap)
	}
	if c.Search.ChunkOverlap >= c.Search.ChunkSize {
		return fmt.Errorf("search.chunk_overlap (%d) must be less than chunk_size (%d)",
			c.Search.ChunkOverlap, c.Search.ChunkSize)
	}
	if c.Search.RRFConstant <= 0 {
		return fmt.Errorf("search.rrf_constant must be positive, got %d", c.Search.RRFConstant)
	}
	switch c.Search.KeywordBackend {
	case "sqlite", "bleve":
	default:
		return fmt.Errorf("search.keyword_backend must be sqlite or bleve, got %q", c.Search.KeywordBackend)
	}
	switch strings.ToLower(c.Embeddings.Provider) {
	case "ollama", "static", "auto":
	default:
		return fmt.Errorf("embeddings.provider must be ollama, static, or auto, got %q", c.Embeddings.Provider)
	}
	if c.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("embeddings.dimensions must be positive, got %d", c.Embeddings.Dimensions)
	}
	if c.Embeddings.BatchSize <= 0 {
		return fmt.Errorf("embeddings.batch_size must be positive, got %d", c.Embeddings.BatchSize)
	}
	if c.Sync.Concurrency <= 0 {
		return fmt.Errorf("sync.concurrency must be positive, got %d", c.Sync.Concurrency)
	}
	return nil
}

// WriteYAML persists the configuration to the given path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
