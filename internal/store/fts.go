package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// SQLiteKeywordIndex implements KeywordIndex using SQLite FTS5 with
// BM25 scoring. WAL mode allows reads concurrent with writes.
type SQLiteKeywordIndex struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var _ KeywordIndex = (*SQLiteKeywordIndex)(nil)

var keywordTokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// NewSQLiteKeywordIndex creates an FTS5-backed keyword index at path.
// An empty path creates an in-memory index for testing.
func NewSQLiteKeywordIndex(path string) (*SQLiteKeywordIndex, error) {
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

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	idx := &SQLiteKeywordIndex{db: db, path: path}
	if err := idx.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return idx, nil
}

func (s *SQLiteKeywordIndex) initSchema() error {
	// chunk_id and collection are UNINDEXED (stored but not searchable).
	// A separate tracking table backs AllIDs; FTS5 does not expose
	// rowids reliably.
	schema := `
	CREATE VIRTUAL TABLE IF NOT EXISTS fts_chunks USING fts5(
		chunk_id UNINDEXED,
		collection UNINDEXED,
		content,
		tokenize='unicode61'
	);

	CREATE TABLE IF NOT EXISTS chunk_ids (
		chunk_id TEXT PRIMARY KEY
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Index adds or replaces chunks. FTS5 virtual tables do not support
// REPLACE, so existing entries are deleted first.
func (s *SQLiteKeywordIndex) Index(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("index is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	deleteStmt, err := tx.PrepareContext(ctx, `DELETE FROM fts_chunks WHERE chunk_id = ?`)
	if err != nil {
		return fmt.Errorf("prepare delete: %w", err)
	}
	defer func() { _ = deleteStmt.Close() }()

	insertStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fts_chunks(chunk_id, collection, content) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = insertStmt.Close() }()

	idStmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO chunk_ids(chunk_id) VALUES (?)`)
	if err != nil {
		return fmt.Errorf("prepare id insert: %w", err)
	}
	defer func() { _ = idStmt.Close() }()

	for _, c := range chunks {
		if _, err := deleteStmt.ExecContext(ctx, c.ID); err != nil {
			return fmt.Errorf("delete existing chunk %s: %w", c.ID, err)
		}
		if _, err := insertStmt.ExecContext(ctx, c.ID, c.CollectionID, c.Content); err != nil {
			return fmt.Errorf("index chunk %s: %w", c.ID, err)
		}
		if _, err := idStmt.ExecContext(ctx, c.ID); err != nil {
			return fmt.Errorf("track chunk id %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// Search returns the best-matching chunks for a query. Query text is
// reduced to bare terms joined with OR; malformed input therefore
// yields empty results rather than FTS5 syntax errors.
func (s *SQLiteKeywordIndex) Search(ctx context.Context, query string, collections []string, limit int) ([]*KeywordResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("index is closed")
	}

	tokens := keywordTokenRegex.FindAllString(strings.ToLower(query), -1)
	if len(tokens) == 0 {
		return []*KeywordResult{}, nil
	}
	for i, tok := range tokens {
		tokens[i] = `"` + tok + `"`
	}
	matchQuery := strings.Join(tokens, " OR ")

	// bm25() returns negative values where lower is a better match.
	sqlQuery := `
		SELECT chunk_id, bm25(fts_chunks) AS score
		FROM fts_chunks
		WHERE content MATCH ?`
	args := []any{matchQuery}

	if len(collections) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(collections)), ",")
		sqlQuery += fmt.Sprintf(" AND collection IN (%s)", placeholders)
		for _, c := range collections {
			args = append(args, c)
		}
	}
	sqlQuery += " ORDER BY score LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		if strings.Contains(err.Error(), "fts5") || strings.Contains(err.Error(), "syntax error") {
			return []*KeywordResult{}, nil
		}
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := []*KeywordResult{}
	for rows.Next() {
		var id string
		var score float64
		if err := rows.Scan(&id, &score); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, &KeywordResult{
			ChunkID: id,
			Score:   -score,
		})
	}
	return results, rows.Err()
}

// Delete removes chunks from the index.
func (s *SQLiteKeywordIndex) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("index is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunkIDs)), ",")
	args := make([]any, len(chunkIDs))
	for i, id := range chunkIDs {
		args[i] = id
	}

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM fts_chunks WHERE chunk_id IN (%s)", placeholders), args...); err != nil {
		return fmt.Errorf("delete from fts: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM chunk_ids WHERE chunk_id IN (%s)", placeholders), args...); err != nil {
		return fmt.Errorf("delete from chunk_ids: %w", err)
	}

	return tx.Commit()
}

// AllIDs returns all chunk IDs in the index.
func (s *SQLiteKeywordIndex) AllIDs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("index is closed")
	}

	rows, err := s.db.Query(`SELECT chunk_id FROM chunk_ids ORDER BY chunk_id`)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
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

// Close checkpoints the WAL and closes the index. Idempotent.
func (s *SQLiteKeywordIndex) Close() error {
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
