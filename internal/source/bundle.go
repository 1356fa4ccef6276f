package source

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/docindex/docindex/internal/errors"
)

// maxBundleEntryBytes caps a single extracted file.
const maxBundleEntryBytes = 64 << 20

// extractBundle unpacks a zip archive into an ephemeral directory and
// returns the directory with a cleanup func. Entries escaping the
// target directory abort the extraction.
func extractBundle(zipPath string) (string, func(), error) {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", nil, errors.Fetch("opening bundle "+zipPath, err)
	}
	defer reader.Close()

	dir, err := os.MkdirTemp("", "docindex-bundle-*")
	if err != nil {
		return "", nil, errors.Fetch("creating bundle extraction directory", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	for _, entry := range reader.File {
		if err := extractEntry(dir, entry); err != nil {
			cleanup()
			return "", nil, err
		}
	}
	return dir, cleanup, nil
}

func extractEntry(dir string, entry *zip.File) error {
	target := filepath.Join(dir, filepath.FromSlash(entry.Name))

	// Zip-slip guard: the resolved path must stay under dir.
	rel, err := filepath.Rel(dir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return errors.Validation("bundle entry escapes extraction directory: "+entry.Name, nil)
	}

	if entry.FileInfo().IsDir() {
		if err := os.MkdirAll(target, 0o755); err != nil {
			return errors.Fetch("creating bundle directory "+entry.Name, err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Fetch("creating bundle directory for "+entry.Name, err)
	}

	src, err := entry.Open()
	if err != nil {
		return errors.Fetch("reading bundle entry "+entry.Name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Fetch("writing bundle entry "+entry.Name, err)
	}
	defer dst.Close()

	n, err := io.Copy(dst, io.LimitReader(src, maxBundleEntryBytes+1))
	if err != nil {
		return errors.Fetch("extracting bundle entry "+entry.Name, err)
	}
	if n > maxBundleEntryBytes {
		return errors.Validation("bundle entry too large: "+entry.Name, nil)
	}
	return nil
}
