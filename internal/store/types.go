// Package store provides metadata persistence (SQLite), keyword search
// (FTS5 or Bleve), and vector storage (HNSW) for indexed documents.
package store

import (
	"context"
	"fmt"
	"time"
)

// Collection is a named container for documents from one source.
type Collection struct {
	ID            string // deterministic function of the normalized locator
	Name          string // display name
	Version       string
	Description   string
	Locator       string // normalized source locator
	ManifestHash  string // hash of the last-applied manifest
	LastSyncedAt  time.Time
	DocumentCount int // populated by ListCollections
}

// Document is one logical unit of content within a collection.
type Document struct {
	CollectionID string
	ID           string // unique within collection, typically a path or URL
	Title        string
	Content      string
	ContentHash  string // sole change-detection signal
	UpdatedAt    time.Time
}

// DocumentInfo is a listing entry without the full content.
type DocumentInfo struct {
	CollectionID string
	ID           string
	Title        string
	SizeBytes    int64
	UpdatedAt    time.Time
}

// Chunk is a retrievable slice of a document with its embedding.
type Chunk struct {
	ID           string
	CollectionID string
	DocumentID   string
	Seq          int
	Content      string // display content, no context prefix
	Heading      string
	StartLine    int
	EndLine      int
	Embedding    []float32
}

// State keys for the metadata key-value table.
const (
	// StateKeyIndexDimension stores the embedding dimension of the index.
	StateKeyIndexDimension = "index_embedding_dimension"
	// StateKeyIndexModel stores the embedding model name of the index.
	StateKeyIndexModel = "index_embedding_model"
)

// MetadataStore persists collections, documents, and chunks in SQLite.
// It is the source of truth; keyword and vector indexes mirror it.
type MetadataStore interface {
	// Collection operations
	SaveCollection(ctx context.Context, col *Collection) error
	GetCollection(ctx context.Context, id string) (*Collection, error)
	ListCollections(ctx context.Context) ([]*Collection, error)
	DeleteCollection(ctx context.Context, id string) (chunkIDs []string, err error)

	// Document operations
	GetDocument(ctx context.Context, collectionID, docID string) (*Document, error)
	GetDocumentHash(ctx context.Context, collectionID, docID string) (string, error)
	ListDocuments(ctx context.Context, collectionID, cursor string, limit int) ([]*DocumentInfo, string, error)
	ListDocumentIDs(ctx context.Context, collectionID string) ([]string, error)

	// ReplaceDocument replaces a document and its full chunk set in one
	// transaction. Returns the IDs of the chunks that were removed.
	ReplaceDocument(ctx context.Context, doc *Document, chunks []*Chunk) (removedChunkIDs []string, err error)

	// DeleteDocuments removes documents and their chunks atomically.
	// Missing IDs are not an error. Returns removed chunk IDs.
	DeleteDocuments(ctx context.Context, collectionID string, docIDs []string) (removedChunkIDs []string, err error)

	// Chunk operations
	GetChunks(ctx context.Context, ids []string) ([]*Chunk, error)
	GetChunksByDocument(ctx context.Context, collectionID, docID string) ([]*Chunk, error)
	CountChunks(ctx context.Context, collectionID string) (int, error)

	// ChunkIDSet returns the set of chunk IDs belonging to the given
	// collections, for filtering vector search results.
	ChunkIDSet(ctx context.Context, collectionIDs []string) (map[string]struct{}, error)

	// State operations (key-value store for runtime state)
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error

	Close() error
}

// KeywordResult is a single keyword search result.
type KeywordResult struct {
	ChunkID string
	Score   float64
}

// KeywordIndex provides keyword search over chunk content.
type KeywordIndex interface {
	// Index adds or replaces chunks in the index.
	Index(ctx context.Context, chunks []*Chunk) error

	// Search returns chunks matching the query, best first, optionally
	// restricted to the given collections (nil means all).
	Search(ctx context.Context, query string, collections []string, limit int) ([]*KeywordResult, error)

	// Delete removes chunks from the index.
	Delete(ctx context.Context, chunkIDs []string) error

	// AllIDs returns all chunk IDs in the index (for consistency checks).
	AllIDs() ([]string, error)

	Close() error
}

// VectorResult is a single vector search result.
type VectorResult struct {
	ID       string
	Distance float32 // lower is more similar (0-2 for cosine)
	Score    float32 // normalized similarity (0-1)
}

// VectorStoreConfig configures the vector store.
type VectorStoreConfig struct {
	// Dimensions is the embedding vector width.
	Dimensions int

	// M is the HNSW max connections per layer.
	M int

	// EfSearch is the HNSW query-time search width.
	EfSearch int
}

// DefaultVectorStoreConfig returns sensible defaults.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		M:          16,
		EfSearch:   64,
	}
}

// VectorStore provides nearest-neighbor search over chunk embeddings.
type VectorStore interface {
	// Add inserts vectors with their IDs. Existing IDs are replaced.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Search finds the k nearest neighbors of the query vector.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	// SearchFiltered finds the k nearest neighbors whose IDs pass the
	// allow predicate. A nil predicate admits everything.
	SearchFiltered(ctx context.Context, query []float32, k int, allow func(id string) bool) ([]*VectorResult, error)

	// Delete removes vectors by ID.
	Delete(ctx context.Context, ids []string) error

	// Contains checks if an ID exists.
	Contains(id string) bool

	// Count returns the number of vectors.
	Count() int

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// ErrDimensionMismatch indicates a vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
