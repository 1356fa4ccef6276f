package embed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// ProviderType represents an embedding provider.
type ProviderType string

const (
	// ProviderOllama uses the Ollama API for embeddings.
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses hash-based embeddings (no external service).
	ProviderStatic ProviderType = "static"

	// ProviderAuto selects Ollama when reachable, static otherwise.
	ProviderAuto ProviderType = "auto"
)

// Options configures embedder construction.
type Options struct {
	Provider   ProviderType
	Model      string
	Host       string
	Dimensions int
	BatchSize  int
}

// NewEmbedder creates an embedder for the given options. The
// DOCINDEX_EMBEDDINGS_PROVIDER environment variable overrides the
// configured provider. Results are wrapped with an LRU cache unless
// DOCINDEX_EMBED_CACHE disables it.
func NewEmbedder(ctx context.Context, opts Options) (Embedder, error) {
	provider := opts.Provider
	if env := os.Getenv("DOCINDEX_EMBEDDINGS_PROVIDER"); env != "" {
		provider = ProviderType(strings.ToLower(env))
	}

	var embedder Embedder
	var err error

	switch provider {
	case ProviderOllama:
		embedder, err = newOllama(ctx, opts)
	case ProviderStatic:
		embedder = NewStaticEmbedder()
	case ProviderAuto, "":
		embedder, err = newOllama(ctx, opts)
		if err != nil {
			slog.Warn("ollama_unavailable_using_static",
				slog.String("error", err.Error()))
			embedder, err = NewStaticEmbedder(), nil
		}
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", provider)
	}

	if err != nil {
		return nil, err
	}

	if !isCacheDisabled() {
		embedder = NewCachedEmbedder(embedder, DefaultEmbeddingCacheSize)
	}

	return embedder, nil
}

func newOllama(ctx context.Context, opts Options) (Embedder, error) {
	cfg := DefaultOllamaConfig()
	if opts.Model != "" {
		cfg.Model = opts.Model
	}
	if opts.Host != "" {
		cfg.Host = opts.Host
	}
	if opts.Dimensions > 0 {
		cfg.Dimensions = opts.Dimensions
	}
	if opts.BatchSize > 0 {
		cfg.BatchSize = opts.BatchSize
	}
	return NewOllamaEmbedder(ctx, cfg)
}

// isCacheDisabled checks if the embedding cache is disabled via environment.
func isCacheDisabled() bool {
	v := strings.ToLower(os.Getenv("DOCINDEX_EMBED_CACHE"))
	return v == "false" || v == "0" || v == "off" || v == "disabled"
}
