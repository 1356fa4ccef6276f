package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/docindex/docindex/internal/chunk"
	"github.com/docindex/docindex/internal/config"
	"github.com/docindex/docindex/internal/docs"
	"github.com/docindex/docindex/internal/embed"
	"github.com/docindex/docindex/internal/logging"
	"github.com/docindex/docindex/internal/output"
	"github.com/docindex/docindex/internal/search"
	"github.com/docindex/docindex/internal/store"
	"github.com/docindex/docindex/internal/syncer"
)

// app bundles the wired components behind one CLI invocation. Every
// command opens an app, does its work, and closes it; Close persists
// the vector index when the command mutated it.
type app struct {
	cfg      *config.Config
	renderer *output.Renderer

	meta     *store.SQLiteStore
	keyword  store.KeywordIndex
	vectors  *store.HNSWStore
	embedder embed.Embedder
	reranker embed.Embedder

	content *docs.ContentStore
	engine  *search.Engine
	coord   *syncer.Coordinator

	lock       *store.IndexLock
	vectorPath string
	dirty      bool

	cleanups []func()
}

// openApp loads config, acquires the index lock, and wires the stores,
// embedders, engine, and coordinator.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	logCleanup, err := logging.SetupDefault(logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.Logging.FilePath,
		WriteToStderr: cfg.Logging.FilePath == "",
	})
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		renderer: output.NewRenderer(os.Stdout, flagJSON),
	}
	a.cleanups = append(a.cleanups, logCleanup)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		a.close()
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	a.lock = store.NewIndexLock(cfg.DataDir)
	ok, err := a.lock.TryLock()
	if err != nil {
		a.close()
		return nil, err
	}
	if !ok {
		a.close()
		return nil, fmt.Errorf("another docindex process holds the index lock at %s", a.lock.Path())
	}
	a.cleanups = append(a.cleanups, func() { _ = a.lock.Unlock() })

	if err := a.wire(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg

	meta, err := store.NewSQLiteStore(filepath.Join(cfg.DataDir, "index.db"))
	if err != nil {
		return err
	}
	a.meta = meta
	a.cleanups = append(a.cleanups, func() { _ = meta.Close() })

	keyword, err := store.NewKeywordIndex(
		filepath.Join(cfg.DataDir, "keyword"),
		store.KeywordBackend(cfg.Search.KeywordBackend))
	if err != nil {
		return err
	}
	a.keyword = keyword
	a.cleanups = append(a.cleanups, func() { _ = keyword.Close() })

	embedder, err := embed.NewEmbedder(ctx, embed.Options{
		Provider:   embed.ProviderType(cfg.Embeddings.Provider),
		Model:      cfg.Embeddings.Model,
		Host:       cfg.Embeddings.OllamaHost,
		Dimensions: cfg.Embeddings.Dimensions,
		BatchSize:  cfg.Embeddings.BatchSize,
	})
	if err != nil {
		return err
	}
	a.embedder = embedder
	a.cleanups = append(a.cleanups, func() { _ = embedder.Close() })

	a.vectorPath = filepath.Join(cfg.DataDir, "vectors.hnsw")

	// An existing index fixes the vector dimensionality; a fresh one
	// takes it from the active embedder.
	dims, err := store.ReadHNSWStoreDimensions(a.vectorPath)
	if err != nil {
		return err
	}
	if dims == 0 {
		dims = embedder.Dimensions()
	} else if dims != embedder.Dimensions() {
		return fmt.Errorf("vector index has %d dimensions but embedder %q produces %d; re-sync with --force after removing %s",
			dims, embedder.ModelName(), embedder.Dimensions(), cfg.DataDir)
	}

	vectors, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(dims))
	if err != nil {
		return err
	}
	a.vectors = vectors
	a.cleanups = append(a.cleanups, func() { _ = vectors.Close() })

	if _, statErr := os.Stat(a.vectorPath); statErr == nil {
		if err := vectors.Load(a.vectorPath); err != nil {
			return fmt.Errorf("load vector index: %w", err)
		}
	}

	a.reranker = a.buildReranker()

	chunker := chunk.New(chunk.Options{
		MaxTokens:     cfg.Search.ChunkSize,
		OverlapTokens: cfg.Search.ChunkOverlap,
	})
	a.content = docs.NewContentStore(meta, keyword, vectors, embedder, chunker, nil)
	a.engine = search.NewEngine(meta, keyword, vectors, embedder, a.reranker, cfg.Search.RRFConstant, nil)
	a.coord = syncer.New(a.content, nil, cfg.Sync.Concurrency, nil)
	return nil
}

// buildReranker constructs the independent re-ranking model. A
// configured rerank model runs through Ollama, built lazily since most
// commands never rerank; otherwise the static hash embedder supplies a
// second signal that differs from the primary.
func (a *app) buildReranker() embed.Embedder {
	if a.cfg.Embeddings.RerankModel == "" {
		return embed.NewStaticEmbedder()
	}
	reranker := embed.NewLazyEmbedder(embed.Options{
		Provider:  embed.ProviderOllama,
		Model:     a.cfg.Embeddings.RerankModel,
		Host:      a.cfg.Embeddings.OllamaHost,
		BatchSize: a.cfg.Embeddings.BatchSize,
	})
	a.cleanups = append(a.cleanups, func() { _ = reranker.Close() })
	return reranker
}

// markDirty records that the vector index changed and must be saved.
func (a *app) markDirty() {
	a.dirty = true
}

// Close persists the vector index if dirty, then releases everything
// in reverse acquisition order.
func (a *app) Close() error {
	var saveErr error
	if a.dirty && a.vectors != nil {
		saveErr = a.vectors.Save(a.vectorPath)
	}
	a.close()
	return saveErr
}

func (a *app) close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil
}
