package embed

import "time"

// Ollama API constants.
const (
	// DefaultOllamaHost is the default Ollama API endpoint.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is the default embedding model for prose-heavy
	// documentation corpora.
	DefaultOllamaModel = "nomic-embed-text"

	// OllamaConnectTimeout for the initial health check.
	OllamaConnectTimeout = 5 * time.Second

	// OllamaPoolSize for the HTTP connection pool.
	OllamaPoolSize = 4

	// queryInstruction is prepended to query text for asymmetric models.
	// Document text is embedded without a prefix.
	queryInstruction = "search_query: "
)

// FallbackOllamaModels are tried in order if the primary model is not
// installed.
var FallbackOllamaModels = []string{
	"mxbai-embed-large",
	"embeddinggemma",
}

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	// Host is the Ollama API endpoint (default: http://localhost:11434).
	Host string

	// Model is the embedding model to use.
	Model string

	// FallbackModels are tried in order if the primary model is unavailable.
	FallbackModels []string

	// Dimensions overrides auto-detection when non-zero.
	Dimensions int

	// BatchSize for batch embedding requests (default: 32).
	BatchSize int

	// MaxRetries for transient failures (default: 3).
	MaxRetries int

	// PoolSize for the HTTP connection pool (default: 4).
	PoolSize int

	// SkipHealthCheck skips the initial availability check (for testing).
	SkipHealthCheck bool
}

// DefaultOllamaConfig returns sensible defaults.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Host:           DefaultOllamaHost,
		Model:          DefaultOllamaModel,
		FallbackModels: FallbackOllamaModels,
		Dimensions:     0,
		BatchSize:      DefaultBatchSize,
		MaxRetries:     DefaultMaxRetries,
		PoolSize:       OllamaPoolSize,
	}
}

// ollamaEmbedRequest is the Ollama /api/embed request.
type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"` // string or []string for batch
}

// ollamaEmbedResponse is the Ollama /api/embed response.
type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

// ollamaModelListResponse is the Ollama /api/tags response.
type ollamaModelListResponse struct {
	Models []ollamaModelInfo `json:"models"`
}

// ollamaModelInfo describes an installed model.
type ollamaModelInfo struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
}
