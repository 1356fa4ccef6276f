package syncer

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docindex/docindex/internal/chunk"
	"github.com/docindex/docindex/internal/docs"
	"github.com/docindex/docindex/internal/embed"
	"github.com/docindex/docindex/internal/source"
	"github.com/docindex/docindex/internal/store"
)

// countingFetcher wraps the real fetcher and counts Fetch calls so
// tests can prove the manifest-hash short-circuit skips all fetches.
type countingFetcher struct {
	inner source.Fetcher
	calls atomic.Int64
}

func (f *countingFetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	f.calls.Add(1)
	return f.inner.Fetch(ctx, locator)
}

func newTestCoordinator(t *testing.T) (*Coordinator, *countingFetcher, *docs.ContentStore) {
	t.Helper()

	meta, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = meta.Close() })

	keyword, err := store.NewSQLiteKeywordIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = keyword.Close() })

	vectors, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(embed.StaticDimensions))
	require.NoError(t, err)
	t.Cleanup(func() { _ = vectors.Close() })

	embedder := embed.NewStaticEmbedder()
	chunker := chunk.New(chunk.Options{MaxTokens: 100, OverlapTokens: 10})
	content := docs.NewContentStore(meta, keyword, vectors, embedder, chunker, nil)

	fetcher := &countingFetcher{inner: source.NewFetcher()}
	return New(content, fetcher, 2, nil), fetcher, content
}

// writeSource lays out a glob manifest and document files, returning
// the manifest path.
func writeSource(t *testing.T, dir string, files map[string]string) string {
	t.Helper()
	for name, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	manifest := filepath.Join(dir, "docindex.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte("name: test-docs\nglobs: [\"**/*.md\"]\n"), 0o644))
	return manifest
}

func TestSyncInitial(t *testing.T) {
	coord, _, content := newTestCoordinator(t)
	ctx := context.Background()

	dir := t.TempDir()
	manifest := writeSource(t, dir, map[string]string{
		"getting-started.md": "# Getting Started\n\nInstall and run.",
		"auth.md":            "# Authentication Guide\n\nTokens and sessions.",
	})

	result, err := coord.Sync(ctx, "docs", manifest, "", Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Added)
	assert.Zero(t, result.Updated)
	assert.Zero(t, result.Removed)
	assert.Equal(t, 2, result.Total)

	col, err := content.Meta().GetCollection(ctx, result.CollectionID)
	require.NoError(t, err)
	require.NotNil(t, col)
	assert.Equal(t, "docs", col.Name)
	assert.NotEmpty(t, col.ManifestHash)
	assert.False(t, col.LastSyncedAt.IsZero())
}

func TestSyncUnchangedManifestSkipsFetch(t *testing.T) {
	coord, fetcher, _ := newTestCoordinator(t)
	ctx := context.Background()

	dir := t.TempDir()
	manifest := writeSource(t, dir, map[string]string{"a.md": "# A\n\nbody"})

	_, err := coord.Sync(ctx, "docs", manifest, "", Options{})
	require.NoError(t, err)
	callsAfterFirst := fetcher.calls.Load()

	result, err := coord.Sync(ctx, "docs", manifest, "", Options{})
	require.NoError(t, err)
	assert.Zero(t, result.Added)
	assert.Zero(t, result.Updated)
	assert.Zero(t, result.Removed)
	assert.Zero(t, result.Total)
	assert.Equal(t, callsAfterFirst, fetcher.calls.Load(),
		"unchanged manifest must not fetch any entry")
}

func TestSyncForceRefreshesUnchangedManifest(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	dir := t.TempDir()
	manifest := writeSource(t, dir, map[string]string{"a.md": "# A\n\nbody"})

	_, err := coord.Sync(ctx, "docs", manifest, "", Options{})
	require.NoError(t, err)

	result, err := coord.Sync(ctx, "docs", manifest, "", Options{Force: true})
	require.NoError(t, err)
	// Content is unchanged, so a forced pass still reports no writes.
	assert.Zero(t, result.Added)
	assert.Zero(t, result.Updated)
	assert.Equal(t, 1, result.Total)
}

func TestSyncDiff(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	dir := t.TempDir()
	writeSource(t, dir, map[string]string{
		"a.md": "# A\n\nalpha",
		"b.md": "# B\n\nbeta",
		"c.md": "# C\n\ngamma",
	})
	manifest := filepath.Join(dir, "docindex.yaml")

	_, err := coord.Sync(ctx, "docs", manifest, "", Options{})
	require.NoError(t, err)

	// Next sync resolves {B, C, D}: A removed, D added, B/C unchanged.
	require.NoError(t, os.Remove(filepath.Join(dir, "a.md")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "d.md"), []byte("# D\n\ndelta"), 0o644))
	// Touch the manifest so the hash short-circuit does not kick in.
	require.NoError(t, os.WriteFile(manifest, []byte("name: test-docs\nversion: \"2\"\nglobs: [\"**/*.md\"]\n"), 0o644))

	result, err := coord.Sync(ctx, "docs", manifest, "", Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Added)
	assert.Zero(t, result.Updated)
	assert.Equal(t, 1, result.Removed)
	assert.Equal(t, 3, result.Total)
}

func TestSyncDetectsContentChange(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	dir := t.TempDir()
	manifest := writeSource(t, dir, map[string]string{"a.md": "# A\n\noriginal"})

	_, err := coord.Sync(ctx, "docs", manifest, "", Options{})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("# A\n\nrevised"), 0o644))

	result, err := coord.Sync(ctx, "docs", manifest, "", Options{Force: true})
	require.NoError(t, err)
	assert.Zero(t, result.Added)
	assert.Equal(t, 1, result.Updated)
}

func TestSyncManifestHashSkipsUnchangedEntry(t *testing.T) {
	coord, fetcher, _ := newTestCoordinator(t)
	ctx := context.Background()

	dir := t.TempDir()
	content := "# A\n\nstable body"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte(content), 0o644))

	manifestBody := "files:\n  - path: a.md\n    hash: " + docs.HashContent(content) + "\n"
	manifest := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte(manifestBody), 0o644))

	_, err := coord.Sync(ctx, "docs", manifest, "", Options{})
	require.NoError(t, err)
	calls := fetcher.calls.Load()

	// Re-sync with a cosmetically changed manifest: the declared hash
	// matches the stored hash, so the entry is skipped without fetch.
	require.NoError(t, os.WriteFile(manifest, []byte("version: \"2\"\n"+manifestBody), 0o644))
	result, err := coord.Sync(ctx, "docs", manifest, "", Options{})
	require.NoError(t, err)
	assert.Zero(t, result.Added+result.Updated+result.Removed)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, calls, fetcher.calls.Load())
}

func TestSyncPartialFetchFailure(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.md"), []byte("# Good\n\nbody"), 0o644))

	manifestBody := "files:\n  - path: good.md\n  - path: missing.md\n"
	manifest := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte(manifestBody), 0o644))

	result, err := coord.Sync(ctx, "docs", manifest, "", Options{})
	require.NoError(t, err, "a per-entry fetch failure must not abort the sync")
	assert.Equal(t, 1, result.Added)
	assert.Equal(t, 2, result.Total)
}

func TestSyncIdempotentCollectionID(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	dir := t.TempDir()
	manifest := writeSource(t, dir, map[string]string{"a.md": "# A\n\nbody"})

	first, err := coord.Sync(ctx, "docs", manifest, "", Options{})
	require.NoError(t, err)
	second, err := coord.Sync(ctx, "renamed", manifest, "", Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, first.CollectionID, second.CollectionID)
}

func TestSyncMalformedManifest(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	manifest := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte("name: no sources\n"), 0o644))

	_, err := coord.Sync(ctx, "docs", manifest, "", Options{})
	assert.Error(t, err)
}

func TestDrop(t *testing.T) {
	coord, _, content := newTestCoordinator(t)
	ctx := context.Background()

	dir := t.TempDir()
	manifest := writeSource(t, dir, map[string]string{"a.md": "# A\n\nbody"})

	result, err := coord.Sync(ctx, "docs", manifest, "", Options{})
	require.NoError(t, err)

	require.NoError(t, coord.Drop(ctx, result.CollectionID))
	col, err := content.Meta().GetCollection(ctx, result.CollectionID)
	require.NoError(t, err)
	assert.Nil(t, col)

	// Dropping again is a silent no-op.
	require.NoError(t, coord.Drop(ctx, result.CollectionID))
}
