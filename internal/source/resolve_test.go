package source

import (
	"archive/zip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcherLocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("# Title"), 0o644))

	f := NewFetcher()
	data, err := f.Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "# Title", string(data))

	_, err = f.Fetch(context.Background(), filepath.Join(dir, "missing.md"))
	assert.Error(t, err)
}

func TestFetcherHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/doc.md":
			w.Write([]byte("remote content"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	f := NewFetcher()
	data, err := f.Fetch(context.Background(), srv.URL+"/doc.md")
	require.NoError(t, err)
	assert.Equal(t, "remote content", string(data))

	_, err = f.Fetch(context.Background(), srv.URL+"/missing.md")
	assert.Error(t, err, "non-2xx is a fetch failure")
}

func TestResolveLocalManifest(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.md", "b.md")
	manifest := filepath.Join(dir, "docindex.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte("globs: [\"*.md\"]\n"), 0o644))

	desc, err := ParseLocator(manifest, "")
	require.NoError(t, err)

	resolved, err := Resolve(context.Background(), desc, NewFetcher())
	require.NoError(t, err)
	defer resolved.Cleanup()

	assert.Equal(t, dir, resolved.BaseDir)
	assert.NotEmpty(t, resolved.Hash)

	entries, err := resolved.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestResolveRemoteManifest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/docs/manifest.json":
			w.Write([]byte(`{"files": [{"path": "a.md"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	desc, err := ParseLocator(srv.URL+"/docs/manifest.json", "")
	require.NoError(t, err)

	resolved, err := Resolve(context.Background(), desc, NewFetcher())
	require.NoError(t, err)
	defer resolved.Cleanup()

	entries, err := resolved.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, srv.URL+"/docs/a.md", entries[0].Locator)
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range files {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func TestResolveBundle(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "docs.zip")
	writeZip(t, zipPath, map[string]string{
		"docindex.yaml": "globs: [\"*.md\"]\n",
		"intro.md":      "# Intro",
		"setup.md":      "# Setup",
	})

	desc, err := ParseLocator(zipPath, "")
	require.NoError(t, err)
	assert.True(t, desc.IsBundle)

	resolved, err := Resolve(context.Background(), desc, NewFetcher())
	require.NoError(t, err)

	entries, err := resolved.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	extracted := resolved.BaseDir
	resolved.Cleanup()
	_, statErr := os.Stat(extracted)
	assert.True(t, os.IsNotExist(statErr), "cleanup removes the extraction directory")
}

func TestResolveBundleManifestInSubdirectory(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "docs.zip")
	writeZip(t, zipPath, map[string]string{
		"pkg/manifest.json": `{"files": [{"path": "intro.md"}]}`,
		"pkg/intro.md":      "# Intro",
	})

	desc, err := ParseLocator(zipPath, "")
	require.NoError(t, err)

	resolved, err := Resolve(context.Background(), desc, NewFetcher())
	require.NoError(t, err)
	defer resolved.Cleanup()

	entries, err := resolved.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Locator, "pkg")
}

func TestResolveBundleMissingManifest(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "docs.zip")
	writeZip(t, zipPath, map[string]string{"intro.md": "# Intro"})

	desc, err := ParseLocator(zipPath, "")
	require.NoError(t, err)

	_, err = Resolve(context.Background(), desc, NewFetcher())
	assert.Error(t, err)
}

func TestExtractBundleZipSlip(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "evil.zip")
	writeZip(t, zipPath, map[string]string{"../escape.md": "nope"})

	_, _, err := extractBundle(zipPath)
	assert.Error(t, err)
}

func TestCommitPattern(t *testing.T) {
	assert.True(t, commitPattern.MatchString("abc1234"))
	assert.True(t, commitPattern.MatchString("0123456789abcdef0123456789abcdef01234567"))
	assert.False(t, commitPattern.MatchString("main"))
	assert.False(t, commitPattern.MatchString("v1.2.3"))
	assert.False(t, commitPattern.MatchString("abc"))
}
