package source

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/docindex/docindex/internal/errors"
)

// manifestNames are the well-known manifest filenames searched for in
// git checkouts and bundle roots, in preference order.
var manifestNames = []string{
	"docindex.yaml", "docindex.yml", "docindex.json",
	"manifest.yaml", "manifest.yml", "manifest.json",
}

// FileEntry is one explicit manifest entry. Path names the document ID
// and, when URL is empty, the fetch location relative to the manifest.
type FileEntry struct {
	Path string `yaml:"path" json:"path"`
	URL  string `yaml:"url,omitempty" json:"url,omitempty"`
	Hash string `yaml:"hash,omitempty" json:"hash,omitempty"`
}

// Manifest declares a collection's sources: either a glob set expanded
// against a base directory, or an explicit file list. Exactly one of
// the two shapes must be present.
type Manifest struct {
	Name        string `yaml:"name,omitempty" json:"name,omitempty"`
	Version     string `yaml:"version,omitempty" json:"version,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	Globs []string    `yaml:"globs,omitempty" json:"globs,omitempty"`
	Base  string      `yaml:"base,omitempty" json:"base,omitempty"`
	Files []FileEntry `yaml:"files,omitempty" json:"files,omitempty"`
}

// Entry is one resolved source entry ready to fetch.
type Entry struct {
	// ID is the document ID, unique within the collection.
	ID string

	// Locator is the absolute file path or URL to fetch.
	Locator string

	// Hash is the manifest-declared content hash, empty when the
	// manifest does not pre-compute hashes.
	Hash string
}

// ParseManifest decodes manifest bytes. YAML is a superset of JSON, so
// one decoder covers both formats.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Validation("malformed manifest", err)
	}
	if len(m.Globs) > 0 && len(m.Files) > 0 {
		return nil, errors.Validation("manifest declares both globs and files", nil)
	}
	if len(m.Globs) == 0 && len(m.Files) == 0 {
		return nil, errors.Validation("manifest declares neither globs nor files", nil)
	}
	return &m, nil
}

// HashManifest computes the manifest hash used for the sync
// short-circuit.
func HashManifest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Expand resolves a manifest into a flat entry list. baseDir anchors
// relative paths for local manifests; baseURL anchors them for remote
// manifests (exactly one is non-empty).
func (m *Manifest) Expand(baseDir, baseURL string) ([]Entry, error) {
	if len(m.Globs) > 0 {
		return m.expandGlobs(baseDir)
	}
	return m.expandFiles(baseDir, baseURL)
}

func (m *Manifest) expandGlobs(baseDir string) ([]Entry, error) {
	if baseDir == "" {
		return nil, errors.Validation("glob manifests require a local base directory", nil)
	}
	root := baseDir
	if m.Base != "" {
		if filepath.IsAbs(m.Base) {
			root = filepath.Clean(m.Base)
		} else {
			root = filepath.Join(baseDir, m.Base)
		}
	}

	seen := map[string]bool{}
	var entries []Entry
	for _, pattern := range m.Globs {
		matches, err := expandGlob(root, pattern)
		if err != nil {
			return nil, errors.Validation("bad glob pattern: "+pattern, err)
		}
		for _, rel := range matches {
			if seen[rel] {
				continue
			}
			seen[rel] = true
			entries = append(entries, Entry{
				ID:      rel,
				Locator: filepath.Join(root, filepath.FromSlash(rel)),
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

func (m *Manifest) expandFiles(baseDir, baseURL string) ([]Entry, error) {
	entries := make([]Entry, 0, len(m.Files))
	for _, f := range m.Files {
		e := Entry{Hash: f.Hash}
		switch {
		case f.URL != "":
			e.ID = f.Path
			if e.ID == "" {
				e.ID = path.Base(f.URL)
			}
			e.Locator = f.URL
		case f.Path == "":
			return nil, errors.Validation("manifest file entry has neither path nor url", nil)
		case strings.HasPrefix(f.Path, "http://") || strings.HasPrefix(f.Path, "https://"):
			e.ID = path.Base(f.Path)
			e.Locator = f.Path
		case baseURL != "":
			resolved, err := resolveAgainstURL(baseURL, f.Path)
			if err != nil {
				return nil, err
			}
			e.ID = f.Path
			e.Locator = resolved
		default:
			e.ID = filepath.ToSlash(f.Path)
			if filepath.IsAbs(f.Path) {
				e.Locator = filepath.Clean(f.Path)
			} else {
				e.Locator = filepath.Join(baseDir, f.Path)
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func resolveAgainstURL(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", errors.Validation("bad manifest base URL: "+base, err)
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", errors.Validation("bad manifest file reference: "+ref, err)
	}
	return b.ResolveReference(r).String(), nil
}

// expandGlob matches a slash-separated pattern under root and returns
// matching regular files as slash-separated relative paths. A "**"
// segment matches any number of directories.
func expandGlob(root, pattern string) ([]string, error) {
	// Validate the non-** segments up front so bad patterns fail
	// loudly instead of silently matching nothing.
	for _, seg := range strings.Split(pattern, "/") {
		if seg == "**" {
			continue
		}
		if _, err := path.Match(seg, "probe"); err != nil {
			return nil, err
		}
	}

	var matches []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == root {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if matchGlob(pattern, rel) {
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// matchGlob matches slash-separated name against pattern, where "**"
// spans directory boundaries and other segments use path.Match rules.
func matchGlob(pattern, name string) bool {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(name, "/"))
}

func matchSegments(pat, name []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			for i := 0; i <= len(name); i++ {
				if matchSegments(pat[1:], name[i:]) {
					return true
				}
			}
			return false
		}
		if len(name) == 0 {
			return false
		}
		ok, err := path.Match(pat[0], name[0])
		if err != nil || !ok {
			return false
		}
		pat, name = pat[1:], name[1:]
	}
	return len(name) == 0
}

// findManifest locates a well-known manifest file at dir or in the
// first immediate subdirectory containing one.
func findManifest(dir string) (string, error) {
	for _, name := range manifestNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}

	children, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.Fetch("reading source directory "+dir, err)
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Name() < children[j].Name() })
	for _, child := range children {
		if !child.IsDir() {
			continue
		}
		for _, name := range manifestNames {
			p := filepath.Join(dir, child.Name(), name)
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				return p, nil
			}
		}
	}
	return "", errors.Validation("no manifest found in "+dir, nil)
}
