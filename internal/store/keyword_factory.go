package store

import "fmt"

// KeywordBackend represents the keyword index backend type.
type KeywordBackend string

const (
	// KeywordBackendSQLite uses SQLite FTS5 (default). WAL mode allows
	// concurrent multi-process access.
	KeywordBackendSQLite KeywordBackend = "sqlite"

	// KeywordBackendBleve uses Bleve v2. BoltDB holds an exclusive file
	// lock, so this backend is single-process only.
	KeywordBackendBleve KeywordBackend = "bleve"
)

// NewKeywordIndex creates a KeywordIndex using the given backend. The
// basePath should omit the extension; it is derived from the backend
// (.db for SQLite, .bleve for Bleve). An empty basePath creates an
// in-memory index for testing.
func NewKeywordIndex(basePath string, backend KeywordBackend) (KeywordIndex, error) {
	switch backend {
	case KeywordBackendSQLite, "":
		var path string
		if basePath != "" {
			path = basePath + ".db"
		}
		return NewSQLiteKeywordIndex(path)

	case KeywordBackendBleve:
		var path string
		if basePath != "" {
			path = basePath + ".bleve"
		}
		return NewBleveKeywordIndex(path)

	default:
		return nil, fmt.Errorf("unknown keyword backend: %s (valid options: sqlite, bleve)", backend)
	}
}
