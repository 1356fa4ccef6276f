package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) error {
	t.Helper()
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(&bytes.Buffer{})
	return root.ExecuteContext(context.Background())
}

func TestRootCommandStructure(t *testing.T) {
	root := NewRootCmd()

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, expected := range []string{"sync", "search", "collections", "docs", "serve", "watch", "version"} {
		assert.True(t, names[expected], "missing command %q", expected)
	}
}

func TestVersionCommand(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "docindex")
}

func TestSyncAndCollectionsEndToEnd(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("DOCINDEX_DATA_DIR", dataDir)
	t.Setenv("DOCINDEX_EMBEDDINGS_PROVIDER", "static")

	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.md"),
		[]byte("# Alpha\n\nalpha body"), 0o644))
	manifest := filepath.Join(srcDir, "docindex.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte("globs: [\"*.md\"]\n"), 0o644))

	require.NoError(t, runCLI(t, "sync", manifest, "--name", "docs", "--json"))

	// The sync persisted both stores.
	_, err := os.Stat(filepath.Join(dataDir, "index.db"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dataDir, "vectors.hnsw"))
	assert.NoError(t, err)

	require.NoError(t, runCLI(t, "collections", "--json"))
	require.NoError(t, runCLI(t, "search", "alpha", "--json"))
}

func TestSyncMissingManifestFails(t *testing.T) {
	t.Setenv("DOCINDEX_DATA_DIR", t.TempDir())
	t.Setenv("DOCINDEX_EMBEDDINGS_PROVIDER", "static")

	err := runCLI(t, "sync", filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
