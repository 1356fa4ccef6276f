// Package docs provides the content store: the durable home for
// documents and chunks, owning the chunking and embedding pipeline
// triggered on upsert.
package docs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/docindex/docindex/internal/chunk"
	"github.com/docindex/docindex/internal/embed"
	"github.com/docindex/docindex/internal/errors"
	"github.com/docindex/docindex/internal/store"
)

// ContentStore persists documents and mirrors their chunks into the
// keyword and vector indexes. The metadata store is the source of
// truth; index mirrors are best-effort and orphans are filtered at
// search enrichment.
type ContentStore struct {
	meta    store.MetadataStore
	keyword store.KeywordIndex
	vectors store.VectorStore
	embed   embed.Embedder
	chunker *chunk.Chunker
	logger  *slog.Logger
}

// NewContentStore wires a content store from its collaborators.
func NewContentStore(meta store.MetadataStore, keyword store.KeywordIndex, vectors store.VectorStore, embedder embed.Embedder, chunker *chunk.Chunker, logger *slog.Logger) *ContentStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentStore{
		meta:    meta,
		keyword: keyword,
		vectors: vectors,
		embed:   embedder,
		chunker: chunker,
		logger:  logger,
	}
}

// Meta exposes the underlying metadata store for read paths.
func (cs *ContentStore) Meta() store.MetadataStore {
	return cs.meta
}

// HashContent computes the content hash used for change detection.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Upsert stores a document. If the stored content hash matches, it
// returns immediately without re-chunking or re-embedding. Otherwise
// the document and its full chunk set are replaced in one transaction
// and the chunks are mirrored into the keyword and vector indexes.
// Returns true when content changed.
func (cs *ContentStore) Upsert(ctx context.Context, collectionID, docID, content string) (bool, error) {
	hash := HashContent(content)

	stored, err := cs.meta.GetDocumentHash(ctx, collectionID, docID)
	if err != nil {
		return false, errors.Store("get_document_hash", err)
	}
	if stored == hash {
		return false, nil
	}

	slices := cs.chunker.Split(docID, content)

	embedTexts := make([]string, len(slices))
	for i, s := range slices {
		embedTexts[i] = s.EmbedText
	}
	vectors, err := cs.embed.EmbedDocuments(ctx, embedTexts)
	if err != nil {
		return false, errors.Provider("embed_documents", err)
	}
	if len(vectors) != len(slices) {
		return false, errors.Provider("embed_documents",
			fmt.Errorf("embedding count mismatch: %d slices, %d vectors", len(slices), len(vectors)))
	}

	chunks := make([]*store.Chunk, len(slices))
	for i, s := range slices {
		chunks[i] = &store.Chunk{
			ID:           uuid.NewString(),
			CollectionID: collectionID,
			DocumentID:   docID,
			Seq:          s.Seq,
			Content:      s.Content,
			Heading:      s.Heading,
			StartLine:    s.StartLine,
			EndLine:      s.EndLine,
			Embedding:    vectors[i],
		}
	}

	doc := &store.Document{
		CollectionID: collectionID,
		ID:           docID,
		Title:        chunk.Title(docID, content),
		Content:      content,
		ContentHash:  hash,
		UpdatedAt:    time.Now().UTC(),
	}

	removed, err := cs.meta.ReplaceDocument(ctx, doc, chunks)
	if err != nil {
		return false, errors.Store("replace_document", err)
	}

	cs.mirrorRemove(ctx, removed)
	cs.mirrorAdd(ctx, chunks)

	cs.logger.Debug("document_upserted",
		slog.String("collection", collectionID),
		slog.String("doc_id", docID),
		slog.Int("chunks", len(chunks)))

	return true, nil
}

// Delete removes documents and their chunks. Missing IDs are ignored;
// an empty ID list is a no-op.
func (cs *ContentStore) Delete(ctx context.Context, collectionID string, docIDs []string) error {
	if len(docIDs) == 0 {
		return nil
	}

	removed, err := cs.meta.DeleteDocuments(ctx, collectionID, docIDs)
	if err != nil {
		return errors.Store("delete_documents", err)
	}
	cs.mirrorRemove(ctx, removed)

	cs.logger.Debug("documents_deleted",
		slog.String("collection", collectionID),
		slog.Int("docs", len(docIDs)),
		slog.Int("chunks", len(removed)))
	return nil
}

// DropCollection removes a collection with all documents and chunks.
func (cs *ContentStore) DropCollection(ctx context.Context, collectionID string) error {
	removed, err := cs.meta.DeleteCollection(ctx, collectionID)
	if err != nil {
		return errors.Store("delete_collection", err)
	}
	cs.mirrorRemove(ctx, removed)

	cs.logger.Info("collection_dropped",
		slog.String("collection", collectionID),
		slog.Int("chunks", len(removed)))
	return nil
}

// mirrorAdd pushes chunks into the keyword and vector indexes.
// Failures are logged, not propagated: the metadata store already
// committed, and stale index entries are filtered at enrichment.
func (cs *ContentStore) mirrorAdd(ctx context.Context, chunks []*store.Chunk) {
	if len(chunks) == 0 {
		return
	}
	if err := cs.keyword.Index(ctx, chunks); err != nil {
		cs.logger.Warn("keyword_index_update_failed", slog.String("error", err.Error()))
	}

	ids := make([]string, len(chunks))
	vecs := make([][]float32, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
		vecs[i] = c.Embedding
	}
	if err := cs.vectors.Add(ctx, ids, vecs); err != nil {
		cs.logger.Warn("vector_index_update_failed", slog.String("error", err.Error()))
	}
}

func (cs *ContentStore) mirrorRemove(ctx context.Context, chunkIDs []string) {
	if len(chunkIDs) == 0 {
		return
	}
	if err := cs.keyword.Delete(ctx, chunkIDs); err != nil {
		cs.logger.Warn("keyword_index_delete_failed", slog.String("error", err.Error()))
	}
	if err := cs.vectors.Delete(ctx, chunkIDs); err != nil {
		cs.logger.Warn("vector_index_delete_failed", slog.String("error", err.Error()))
	}
}

// GetDocument returns a document, or a not-found error when absent.
func (cs *ContentStore) GetDocument(ctx context.Context, collectionID, docID string) (*store.Document, error) {
	doc, err := cs.meta.GetDocument(ctx, collectionID, docID)
	if err != nil {
		return nil, errors.Store("get_document", err)
	}
	if doc == nil {
		return nil, errors.NotFound(fmt.Sprintf("document %s/%s not found", collectionID, docID))
	}
	return doc, nil
}

// ListDocuments returns a page of document listings.
func (cs *ContentStore) ListDocuments(ctx context.Context, collectionID, cursor string, limit int) ([]*store.DocumentInfo, string, error) {
	infos, next, err := cs.meta.ListDocuments(ctx, collectionID, cursor, limit)
	if err != nil {
		return nil, "", errors.Store("list_documents", err)
	}
	return infos, next, nil
}

// ListCollections returns all collections with document counts.
func (cs *ContentStore) ListCollections(ctx context.Context) ([]*store.Collection, error) {
	cols, err := cs.meta.ListCollections(ctx)
	if err != nil {
		return nil, errors.Store("list_collections", err)
	}
	return cols, nil
}

// Outline returns the heading outline of a document up to maxDepth.
func (cs *ContentStore) Outline(ctx context.Context, collectionID, docID string, maxDepth int) ([]chunk.Heading, error) {
	doc, err := cs.GetDocument(ctx, collectionID, docID)
	if err != nil {
		return nil, err
	}
	return chunk.Outline(doc.Content, maxDepth), nil
}

// Section returns the body of the first heading matching query, or nil
// when no heading matches. Absence is a nil result, not an error.
func (cs *ContentStore) Section(ctx context.Context, collectionID, docID, query string, includeSubsections bool) (*chunk.Section, error) {
	doc, err := cs.GetDocument(ctx, collectionID, docID)
	if err != nil {
		return nil, err
	}
	return chunk.ExtractSection(doc.Content, query, includeSubsections), nil
}
