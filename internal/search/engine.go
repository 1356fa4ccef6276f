// Package search implements hybrid retrieval: vector similarity and
// keyword rankings fused with Reciprocal Rank Fusion, optionally
// re-scored by an independent embedding model.
package search

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/docindex/docindex/internal/embed"
	"github.com/docindex/docindex/internal/errors"
	"github.com/docindex/docindex/internal/store"
)

const (
	// DefaultLimit is the result count when the caller does not set one.
	DefaultLimit = 10

	// DefaultRRFConstant is the K in 1/(K+rank): large enough that rank
	// differences dominate over absolute-score noise.
	DefaultRRFConstant = 60

	// rerankPoolFactor widens the candidate pool when re-ranking so the
	// second model has something to choose from.
	rerankPoolFactor = 3

	// DefaultKeywordDistance is assigned to chunks found only via
	// keyword search. Cosine distances live in [0, 2]; the midpoint
	// reports "no vector evidence either way". A MaxDistance below
	// this value therefore excludes keyword-only matches.
	DefaultKeywordDistance = 1.0

	// batchConcurrency bounds parallel queries in SearchBatch.
	batchConcurrency = 4
)

// Options controls one search invocation.
type Options struct {
	Query       string   `json:"query"`
	Collections []string `json:"collections,omitempty"`
	Limit       int      `json:"limit,omitempty"`

	// MaxDistance drops results whose vector distance exceeds it.
	// Zero means no cutoff.
	MaxDistance float64 `json:"maxDistance,omitempty"`

	// Hybrid enables keyword fusion. Defaults to on; DisableHybrid
	// turns it off.
	DisableHybrid bool `json:"disableHybrid,omitempty"`

	// Rerank re-scores the fused candidates with the independent
	// re-ranking model.
	Rerank bool `json:"rerank,omitempty"`
}

// Result is one ranked chunk.
type Result struct {
	Collection string  `json:"collection"`
	Document   string  `json:"document"`
	ChunkID    string  `json:"chunkId"`
	Content    string  `json:"content"`
	Heading    string  `json:"heading,omitempty"`
	Distance   float64 `json:"distance"`
	Score      float64 `json:"score"`
}

// Engine answers queries against the shared chunk index.
type Engine struct {
	meta     store.MetadataStore
	keyword  store.KeywordIndex
	vectors  store.VectorStore
	embedder embed.Embedder
	reranker embed.Embedder
	rrfK     int
	logger   *slog.Logger
}

// NewEngine wires a retrieval engine. reranker may be nil, in which
// case Rerank requests fail. rrfK <= 0 selects the default.
func NewEngine(meta store.MetadataStore, keyword store.KeywordIndex, vectors store.VectorStore, embedder embed.Embedder, reranker embed.Embedder, rrfK int, logger *slog.Logger) *Engine {
	if rrfK <= 0 {
		rrfK = DefaultRRFConstant
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		meta:     meta,
		keyword:  keyword,
		vectors:  vectors,
		embedder: embedder,
		reranker: reranker,
		rrfK:     rrfK,
		logger:   logger,
	}
}

// candidate is an intermediate ranked chunk before enrichment.
type candidate struct {
	id          string
	distance    float64
	hasDistance bool
	score       float64
}

// Search returns the best-matching chunks for a free-text query.
// Zero candidates yield an empty list, not an error.
func (e *Engine) Search(ctx context.Context, opts Options) ([]Result, error) {
	if opts.Query == "" {
		return []Result{}, nil
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if opts.Rerank && e.reranker == nil {
		return nil, errors.Validation("re-ranking requested but no re-ranking model is configured", nil)
	}

	candidateCount := limit
	if opts.Rerank {
		candidateCount = limit * rerankPoolFactor
	}

	queryVec, err := e.embedder.EmbedQuery(ctx, opts.Query)
	if err != nil {
		return nil, errors.Provider("embedding query", err)
	}

	allow, err := e.collectionFilter(ctx, opts.Collections)
	if err != nil {
		return nil, err
	}

	var (
		vectorResults  []*store.VectorResult
		keywordResults []*store.KeywordResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var verr error
		vectorResults, verr = e.vectors.SearchFiltered(gctx, queryVec, candidateCount, allow)
		if verr != nil {
			return errors.Store("vector search", verr)
		}
		return nil
	})
	if !opts.DisableHybrid {
		g.Go(func() error {
			kres, kerr := e.keyword.Search(gctx, opts.Query, opts.Collections, candidateCount)
			if kerr != nil {
				// Degrade to vector-only rather than failing the query.
				e.logger.Warn("keyword_search_failed", slog.String("error", kerr.Error()))
				return nil
			}
			keywordResults = kres
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if opts.MaxDistance > 0 {
		filtered := vectorResults[:0]
		for _, r := range vectorResults {
			if float64(r.Distance) <= opts.MaxDistance {
				filtered = append(filtered, r)
			}
		}
		vectorResults = filtered
	}

	candidates := e.fuse(vectorResults, keywordResults, candidateCount)

	// The cutoff binds every returned result, including keyword-only
	// candidates carrying DefaultKeywordDistance.
	if opts.MaxDistance > 0 {
		kept := candidates[:0]
		for _, c := range candidates {
			if c.distance <= opts.MaxDistance {
				kept = append(kept, c)
			}
		}
		candidates = kept
	}

	results, err := e.enrich(ctx, candidates)
	if err != nil {
		return nil, err
	}

	if opts.Rerank {
		results, err = e.rerank(ctx, opts.Query, results)
		if err != nil {
			return nil, err
		}
	}

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// collectionFilter builds the vector-search allow predicate for a
// collection filter. Nil means all chunks are eligible.
func (e *Engine) collectionFilter(ctx context.Context, collections []string) (func(string) bool, error) {
	if len(collections) == 0 {
		return nil, nil
	}
	allowed, err := e.meta.ChunkIDSet(ctx, collections)
	if err != nil {
		return nil, errors.Store("loading collection chunk set", err)
	}
	return func(id string) bool {
		_, ok := allowed[id]
		return ok
	}, nil
}

// fuse merges the two rankings with Reciprocal Rank Fusion. Each list
// contributes 1/(K+rank) per item, rank 0-based; a chunk in both lists
// sums its contributions. With no keyword results the vector ranking
// stands alone with its single-source scores. Ties preserve the order
// the lists already produced.
func (e *Engine) fuse(vectorResults []*store.VectorResult, keywordResults []*store.KeywordResult, limit int) []candidate {
	merged := make([]candidate, 0, len(vectorResults)+len(keywordResults))
	index := make(map[string]int, len(vectorResults)+len(keywordResults))

	for rank, r := range vectorResults {
		index[r.ID] = len(merged)
		merged = append(merged, candidate{
			id:          r.ID,
			distance:    float64(r.Distance),
			hasDistance: true,
			score:       1 / float64(e.rrfK+rank),
		})
	}
	for rank, r := range keywordResults {
		contribution := 1 / float64(e.rrfK+rank)
		if i, ok := index[r.ChunkID]; ok {
			merged[i].score += contribution
			continue
		}
		index[r.ChunkID] = len(merged)
		merged = append(merged, candidate{
			id:       r.ChunkID,
			distance: DefaultKeywordDistance,
			score:    contribution,
		})
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].score > merged[j].score })
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// enrich resolves candidates to full results. Chunks missing from the
// metadata store (stale index entries) are dropped silently.
func (e *Engine) enrich(ctx context.Context, candidates []candidate) ([]Result, error) {
	if len(candidates) == 0 {
		return []Result{}, nil
	}
	ids := make([]string, len(candidates))
	byID := make(map[string]candidate, len(candidates))
	for i, c := range candidates {
		ids[i] = c.id
		byID[c.id] = c
	}

	chunks, err := e.meta.GetChunks(ctx, ids)
	if err != nil {
		return nil, errors.Store("loading result chunks", err)
	}

	results := make([]Result, 0, len(chunks))
	for _, ch := range chunks {
		c := byID[ch.ID]
		results = append(results, Result{
			Collection: ch.CollectionID,
			Document:   ch.DocumentID,
			ChunkID:    ch.ID,
			Content:    ch.Content,
			Heading:    ch.Heading,
			Distance:   c.distance,
			Score:      c.score,
		})
	}
	return results, nil
}

// rerank re-scores candidates with the independent model: cosine
// similarity between the re-embedded query and each candidate's
// display content. The candidate set is preserved; only order changes.
func (e *Engine) rerank(ctx context.Context, query string, results []Result) ([]Result, error) {
	if len(results) == 0 {
		return results, nil
	}

	queryVec, err := e.reranker.EmbedQuery(ctx, query)
	if err != nil {
		return nil, errors.Provider("re-ranking query embedding", err)
	}

	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Content
	}
	vecs, err := e.reranker.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, errors.Provider("re-ranking candidate embedding", err)
	}

	for i := range results {
		results[i].Score = embed.CosineSimilarity(queryVec, vecs[i])
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

// FindRelated locates chunks similar to an existing document, using
// the mean of the document's chunk embeddings as the probe vector.
// excludeSelf drops the source document's own chunks from the results.
func (e *Engine) FindRelated(ctx context.Context, collectionID, docID string, limit int, excludeSelf bool) ([]Result, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	chunks, err := e.meta.GetChunksByDocument(ctx, collectionID, docID)
	if err != nil {
		return nil, errors.Store("loading source document chunks", err)
	}
	if len(chunks) == 0 {
		return []Result{}, nil
	}

	probe := meanVector(chunks)
	self := make(map[string]bool, len(chunks))
	for _, ch := range chunks {
		self[ch.ID] = true
	}

	var allow func(string) bool
	if excludeSelf {
		allow = func(id string) bool { return !self[id] }
	}

	fetch := limit
	if excludeSelf {
		fetch += len(chunks)
	}
	vectorResults, err := e.vectors.SearchFiltered(ctx, probe, fetch, allow)
	if err != nil {
		return nil, errors.Store("vector search", err)
	}

	candidates := make([]candidate, 0, len(vectorResults))
	for rank, r := range vectorResults {
		candidates = append(candidates, candidate{
			id:          r.ID,
			distance:    float64(r.Distance),
			hasDistance: true,
			score:       1 / float64(e.rrfK+rank),
		})
		if len(candidates) == limit {
			break
		}
	}
	return e.enrich(ctx, candidates)
}

// SearchBatch runs several queries against the shared index and
// returns one result set per query, in input order. Batch queries are
// never re-ranked.
func (e *Engine) SearchBatch(ctx context.Context, queries []string, opts Options) ([][]Result, error) {
	out := make([][]Result, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, batchConcurrency)

	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return gctx.Err()
			}

			qopts := opts
			qopts.Query = q
			qopts.Rerank = false
			results, err := e.Search(gctx, qopts)
			if err != nil {
				return err
			}
			out[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// meanVector averages chunk embeddings into one probe vector.
func meanVector(chunks []*store.Chunk) []float32 {
	dims := len(chunks[0].Embedding)
	mean := make([]float32, dims)
	n := 0
	for _, ch := range chunks {
		if len(ch.Embedding) != dims {
			continue
		}
		for i, v := range ch.Embedding {
			mean[i] += v
		}
		n++
	}
	if n > 0 {
		for i := range mean {
			mean[i] /= float32(n)
		}
	}
	return mean
}
