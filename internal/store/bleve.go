package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

// BleveKeywordIndex implements KeywordIndex using Bleve v2. It is the
// alternative to the default FTS5 backend for single-process use.
type BleveKeywordIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

var _ KeywordIndex = (*BleveKeywordIndex)(nil)

// bleveChunkDoc is the document shape indexed by Bleve.
type bleveChunkDoc struct {
	Collection string `json:"collection"`
	Content    string `json:"content"`
}

// NewBleveKeywordIndex creates a Bleve-backed keyword index at path.
// An empty path creates an in-memory index for testing.
func NewBleveKeywordIndex(path string) (*BleveKeywordIndex, error) {
	indexMapping, err := createChunkMapping()
	if err != nil {
		return nil, fmt.Errorf("create index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, fmt.Errorf("create directory: %w", mkErr)
		}
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open bleve index: %w", err)
	}

	return &BleveKeywordIndex{index: idx, path: path}, nil
}

// createChunkMapping maps content with the standard analyzer and the
// collection field as an exact-match keyword.
func createChunkMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()

	collectionField := bleve.NewTextFieldMapping()
	collectionField.Analyzer = keyword.Name
	collectionField.Store = false
	docMapping.AddFieldMappingsAt("collection", collectionField)

	contentField := bleve.NewTextFieldMapping()
	contentField.Store = false
	docMapping.AddFieldMappingsAt("content", contentField)

	indexMapping.DefaultMapping = docMapping
	return indexMapping, nil
}

// Index adds or replaces chunks in a single batch.
func (b *BleveKeywordIndex) Index(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, c := range chunks {
		doc := bleveChunkDoc{Collection: c.CollectionID, Content: c.Content}
		if err := batch.Index(c.ID, doc); err != nil {
			return fmt.Errorf("index chunk %s: %w", c.ID, err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("execute batch: %w", err)
	}
	return nil
}

// Search returns the best-matching chunks for a query, optionally
// restricted to the given collections.
func (b *BleveKeywordIndex) Search(ctx context.Context, queryStr string, collections []string, limit int) ([]*KeywordResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}

	if strings.TrimSpace(queryStr) == "" {
		return []*KeywordResult{}, nil
	}

	matchQuery := bleve.NewMatchQuery(queryStr)
	matchQuery.SetField("content")

	var q query.Query = matchQuery
	if len(collections) > 0 {
		terms := make([]query.Query, len(collections))
		for i, col := range collections {
			tq := bleve.NewTermQuery(col)
			tq.SetField("collection")
			terms[i] = tq
		}
		q = bleve.NewConjunctionQuery(matchQuery, bleve.NewDisjunctionQuery(terms...))
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	results := make([]*KeywordResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		results = append(results, &KeywordResult{
			ChunkID: hit.ID,
			Score:   hit.Score,
		})
	}
	return results, nil
}

// Delete removes chunks from the index.
func (b *BleveKeywordIndex) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, id := range chunkIDs {
		batch.Delete(id)
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

// AllIDs returns all chunk IDs in the index.
func (b *BleveKeywordIndex) AllIDs() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}

	docCount, _ := b.index.DocCount()
	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(docCount)

	result, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search all ids: %w", err)
	}

	ids := make([]string, len(result.Hits))
	for i, hit := range result.Hits {
		ids[i] = hit.ID
	}
	return ids, nil
}

// Close closes the index. Idempotent.
func (b *BleveKeywordIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}
