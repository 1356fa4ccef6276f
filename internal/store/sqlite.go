package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver (no CGO)
)

// SQLiteStore implements MetadataStore on SQLite with WAL mode.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var _ MetadataStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the metadata database at path.
// An empty path creates an in-memory store for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single writer to prevent lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL mode must be set via PRAGMA for modernc.org/sqlite.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS collections (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		version TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		locator TEXT NOT NULL,
		manifest_hash TEXT NOT NULL DEFAULT '',
		last_synced_at INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS documents (
		collection_id TEXT NOT NULL,
		doc_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		updated_at INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (collection_id, doc_id)
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		collection_id TEXT NOT NULL,
		doc_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		content TEXT NOT NULL,
		heading TEXT NOT NULL DEFAULT '',
		start_line INTEGER NOT NULL DEFAULT 0,
		end_line INTEGER NOT NULL DEFAULT 0,
		embedding BLOB
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_doc ON chunks(collection_id, doc_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_collection ON chunks(collection_id);

	CREATE TABLE IF NOT EXISTS state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveCollection inserts or updates a collection row.
func (s *SQLiteStore) SaveCollection(ctx context.Context, col *Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collections (id, name, version, description, locator, manifest_hash, last_synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			version = excluded.version,
			description = excluded.description,
			locator = excluded.locator,
			manifest_hash = excluded.manifest_hash,
			last_synced_at = excluded.last_synced_at`,
		col.ID, col.Name, col.Version, col.Description, col.Locator,
		col.ManifestHash, col.LastSyncedAt.Unix())
	if err != nil {
		return fmt.Errorf("save collection %s: %w", col.ID, err)
	}
	return nil
}

// GetCollection returns a collection by ID, or nil when absent.
func (s *SQLiteStore) GetCollection(ctx context.Context, id string) (*Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, version, description, locator, manifest_hash, last_synced_at
		FROM collections WHERE id = ?`, id)

	col, err := scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return col, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCollection(row rowScanner) (*Collection, error) {
	var col Collection
	var lastSynced int64
	if err := row.Scan(&col.ID, &col.Name, &col.Version, &col.Description,
		&col.Locator, &col.ManifestHash, &lastSynced); err != nil {
		return nil, err
	}
	if lastSynced > 0 {
		col.LastSyncedAt = time.Unix(lastSynced, 0).UTC()
	}
	return &col, nil
}

// ListCollections returns all collections with document counts.
func (s *SQLiteStore) ListCollections(ctx context.Context) ([]*Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.version, c.description, c.locator, c.manifest_hash, c.last_synced_at,
		       (SELECT COUNT(*) FROM documents d WHERE d.collection_id = c.id)
		FROM collections c ORDER BY c.name`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cols []*Collection
	for rows.Next() {
		var col Collection
		var lastSynced int64
		if err := rows.Scan(&col.ID, &col.Name, &col.Version, &col.Description,
			&col.Locator, &col.ManifestHash, &lastSynced, &col.DocumentCount); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		if lastSynced > 0 {
			col.LastSyncedAt = time.Unix(lastSynced, 0).UTC()
		}
		cols = append(cols, &col)
	}
	return cols, rows.Err()
}

// DeleteCollection removes a collection with its documents and chunks,
// returning the removed chunk IDs for index cleanup.
func (s *SQLiteStore) DeleteCollection(ctx context.Context, id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	chunkIDs, err := chunkIDsWhere(ctx, tx, "collection_id = ?", id)
	if err != nil {
		return nil, err
	}

	for _, stmt := range []string{
		"DELETE FROM chunks WHERE collection_id = ?",
		"DELETE FROM documents WHERE collection_id = ?",
		"DELETE FROM collections WHERE id = ?",
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return nil, fmt.Errorf("delete collection %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return chunkIDs, nil
}

func chunkIDsWhere(ctx context.Context, tx *sql.Tx, where string, args ...any) ([]string, error) {
	rows, err := tx.QueryContext(ctx, "SELECT id FROM chunks WHERE "+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query chunk ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetDocument returns a document, or nil when absent.
func (s *SQLiteStore) GetDocument(ctx context.Context, collectionID, docID string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	var doc Document
	var updated int64
	err := s.db.QueryRowContext(ctx, `
		SELECT collection_id, doc_id, title, content, content_hash, updated_at
		FROM documents WHERE collection_id = ? AND doc_id = ?`,
		collectionID, docID).
		Scan(&doc.CollectionID, &doc.ID, &doc.Title, &doc.Content, &doc.ContentHash, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s/%s: %w", collectionID, docID, err)
	}
	doc.UpdatedAt = time.Unix(updated, 0).UTC()
	return &doc, nil
}

// GetDocumentHash returns the stored content hash, or "" when the
// document does not exist.
func (s *SQLiteStore) GetDocumentHash(ctx context.Context, collectionID, docID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", fmt.Errorf("store is closed")
	}

	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT content_hash FROM documents WHERE collection_id = ? AND doc_id = ?`,
		collectionID, docID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get document hash: %w", err)
	}
	return hash, nil
}

// ListDocuments returns a page of document listings ordered by ID. The
// returned cursor is the last ID of the page, empty when exhausted.
func (s *SQLiteStore) ListDocuments(ctx context.Context, collectionID, cursor string, limit int) ([]*DocumentInfo, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, "", fmt.Errorf("store is closed")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT collection_id, doc_id, title, LENGTH(content), updated_at
		FROM documents
		WHERE collection_id = ? AND doc_id > ?
		ORDER BY doc_id LIMIT ?`,
		collectionID, cursor, limit+1)
	if err != nil {
		return nil, "", fmt.Errorf("list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var infos []*DocumentInfo
	for rows.Next() {
		var info DocumentInfo
		var updated int64
		if err := rows.Scan(&info.CollectionID, &info.ID, &info.Title, &info.SizeBytes, &updated); err != nil {
			return nil, "", err
		}
		info.UpdatedAt = time.Unix(updated, 0).UTC()
		infos = append(infos, &info)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	next := ""
	if len(infos) > limit {
		infos = infos[:limit]
		next = infos[len(infos)-1].ID
	}
	return infos, next, nil
}

// ListDocumentIDs returns all document IDs in a collection.
func (s *SQLiteStore) ListDocumentIDs(ctx context.Context, collectionID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT doc_id FROM documents WHERE collection_id = ? ORDER BY doc_id`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("list document ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ReplaceDocument replaces a document row and its entire chunk set in a
// single transaction. Readers never observe a document whose hash does
// not match its chunk set.
func (s *SQLiteStore) ReplaceDocument(ctx context.Context, doc *Document, chunks []*Chunk) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	removed, err := chunkIDsWhere(ctx, tx, "collection_id = ? AND doc_id = ?", doc.CollectionID, doc.ID)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chunks WHERE collection_id = ? AND doc_id = ?`,
		doc.CollectionID, doc.ID); err != nil {
		return nil, fmt.Errorf("delete old chunks: %w", err)
	}

	updated := doc.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents (collection_id, doc_id, title, content, content_hash, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection_id, doc_id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			content_hash = excluded.content_hash,
			updated_at = excluded.updated_at`,
		doc.CollectionID, doc.ID, doc.Title, doc.Content, doc.ContentHash, updated.Unix()); err != nil {
		return nil, fmt.Errorf("upsert document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, collection_id, doc_id, seq, content, heading, start_line, end_line, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, c.CollectionID, c.DocumentID,
			c.Seq, c.Content, c.Heading, c.StartLine, c.EndLine,
			encodeEmbedding(c.Embedding)); err != nil {
			return nil, fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return removed, nil
}

// DeleteDocuments removes documents and their chunks in one transaction.
func (s *SQLiteStore) DeleteDocuments(ctx context.Context, collectionID string, docIDs []string) ([]string, error) {
	if len(docIDs) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(docIDs)), ",")
	args := make([]any, 0, len(docIDs)+1)
	args = append(args, collectionID)
	for _, id := range docIDs {
		args = append(args, id)
	}

	removed, err := chunkIDsWhere(ctx, tx,
		fmt.Sprintf("collection_id = ? AND doc_id IN (%s)", placeholders), args...)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM chunks WHERE collection_id = ? AND doc_id IN (%s)", placeholders),
		args...); err != nil {
		return nil, fmt.Errorf("delete chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM documents WHERE collection_id = ? AND doc_id IN (%s)", placeholders),
		args...); err != nil {
		return nil, fmt.Errorf("delete documents: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return removed, nil
}

// GetChunks returns chunks by ID. Missing IDs are silently skipped so
// callers can filter index orphans.
func (s *SQLiteStore) GetChunks(ctx context.Context, ids []string) ([]*Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, collection_id, doc_id, seq, content, heading, start_line, end_line, embedding
		FROM chunks WHERE id IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[string]*Chunk, len(ids))
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Preserve the caller's ID order.
	chunks := make([]*Chunk, 0, len(byID))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			chunks = append(chunks, c)
		}
	}
	return chunks, nil
}

// GetChunksByDocument returns a document's chunks in sequence order.
func (s *SQLiteStore) GetChunksByDocument(ctx context.Context, collectionID, docID string) ([]*Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, collection_id, doc_id, seq, content, heading, start_line, end_line, embedding
		FROM chunks WHERE collection_id = ? AND doc_id = ? ORDER BY seq`,
		collectionID, docID)
	if err != nil {
		return nil, fmt.Errorf("get chunks by document: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var chunks []*Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func scanChunk(rows *sql.Rows) (*Chunk, error) {
	var c Chunk
	var blob []byte
	if err := rows.Scan(&c.ID, &c.CollectionID, &c.DocumentID, &c.Seq,
		&c.Content, &c.Heading, &c.StartLine, &c.EndLine, &blob); err != nil {
		return nil, fmt.Errorf("scan chunk: %w", err)
	}
	c.Embedding = decodeEmbedding(blob)
	return &c, nil
}

// CountChunks returns the chunk count for a collection, or the total
// count when collectionID is empty.
func (s *SQLiteStore) CountChunks(ctx context.Context, collectionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	var count int
	var err error
	if collectionID == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM chunks WHERE collection_id = ?`, collectionID).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}

// ChunkIDSet returns the chunk IDs belonging to the given collections.
func (s *SQLiteStore) ChunkIDSet(ctx context.Context, collectionIDs []string) (map[string]struct{}, error) {
	if len(collectionIDs) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(collectionIDs)), ",")
	args := make([]any, len(collectionIDs))
	for i, id := range collectionIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT id FROM chunks WHERE collection_id IN (%s)", placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("chunk id set: %w", err)
	}
	defer func() { _ = rows.Close() }()

	set := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		set[id] = struct{}{}
	}
	return set, rows.Err()
}

// GetState returns a state value, or "" when the key is absent.
func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", fmt.Errorf("store is closed")
	}

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get state %s: %w", key, err)
	}
	return value, nil
}

// SetState stores a state value.
func (s *SQLiteStore) SetState(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO state (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("set state %s: %w", key, err)
	}
	return nil
}

// Close checkpoints the WAL and closes the database. Idempotent.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.db != nil {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}

// encodeEmbedding serializes a vector as little-endian float32 bytes.
func encodeEmbedding(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeEmbedding deserializes little-endian float32 bytes.
func decodeEmbedding(buf []byte) []float32 {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}
