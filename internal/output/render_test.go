package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docindex/docindex/internal/chunk"
	"github.com/docindex/docindex/internal/search"
	"github.com/docindex/docindex/internal/store"
	"github.com/docindex/docindex/internal/syncer"
)

func TestSearchResultsPlain(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, false)

	results := []search.Result{
		{Collection: "docs", Document: "auth.md", Heading: "Tokens", Content: "Token based auth.", Score: 0.0321, Distance: 0.4},
	}
	require.NoError(t, r.SearchResults("auth", results))

	out := buf.String()
	assert.Contains(t, out, "docs/auth.md")
	assert.Contains(t, out, "Tokens")
	assert.Contains(t, out, "Token based auth.")
	assert.Contains(t, out, "score=0.0321")
}

func TestSearchResultsEmpty(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, false)

	require.NoError(t, r.SearchResults("nothing", nil))
	assert.Contains(t, buf.String(), `No results for "nothing"`)
}

func TestSearchResultsJSON(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, true)

	results := []search.Result{{Collection: "docs", Document: "a.md", ChunkID: "c1", Score: 1}}
	require.NoError(t, r.SearchResults("q", results))

	var decoded []search.Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "c1", decoded[0].ChunkID)
}

func TestCollections(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, false)

	cols := []*store.Collection{
		{ID: "abc123", Name: "api-docs", Locator: "file:///docs/manifest.yaml",
			DocumentCount: 7, LastSyncedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)},
	}
	require.NoError(t, r.Collections(cols))

	out := buf.String()
	assert.Contains(t, out, "api-docs")
	assert.Contains(t, out, "abc123")
	assert.Contains(t, out, "7 documents")
	assert.Contains(t, out, "2026-08-01T12:00:00Z")
}

func TestSyncResult(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, false)

	require.NoError(t, r.SyncResult(&syncer.Result{
		CollectionID: "abc", Added: 2, Updated: 1, Removed: 3, Total: 6,
	}))
	assert.Contains(t, buf.String(), "added 2, updated 1, removed 3 (of 6 entries)")
}

func TestOutlineIndentsByLevel(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, false)

	require.NoError(t, r.Outline([]chunk.Heading{
		{Level: 1, Text: "Guide", Line: 1},
		{Level: 2, Text: "Setup", Line: 5},
	}))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.False(t, strings.HasPrefix(lines[0], " "))
	assert.True(t, strings.HasPrefix(lines[1], "  "))
}

func TestSectionMiss(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, false)
	require.NoError(t, r.Section(nil))
	assert.Contains(t, buf.String(), "No matching section.")

	buf.Reset()
	rj := NewRenderer(&buf, true)
	require.NoError(t, rj.Section(nil))
	assert.Contains(t, buf.String(), `"found": false`)
}

func TestSnippetTruncates(t *testing.T) {
	long := strings.Repeat("word ", 100)
	s := snippet(long)
	assert.LessOrEqual(t, len(s), snippetLimit+len("…"))
	assert.True(t, strings.HasSuffix(s, "…"))

	assert.Equal(t, "a b", snippet("a\n\n  b"))
}
