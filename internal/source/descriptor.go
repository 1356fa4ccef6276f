// Package source resolves source specifications into manifest entries
// the sync coordinator can fetch: locator parsing, manifest expansion,
// content fetching, git checkout and bundle extraction.
package source

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"

	"github.com/docindex/docindex/internal/errors"
)

// Protocol identifies how a source locator is acquired.
type Protocol string

const (
	ProtocolFile Protocol = "file"
	ProtocolHTTP Protocol = "http"
	ProtocolGit  Protocol = "git"
)

// Descriptor is the normalized form of a source locator. A locator is
// resolved exactly once at the start of sync; everything downstream
// works from the descriptor.
type Descriptor struct {
	// Protocol selects the acquisition strategy.
	Protocol Protocol

	// Location is the absolute file path or URL of the manifest,
	// bundle, or repository.
	Location string

	// IsBundle marks zip archives containing a manifest plus files.
	IsBundle bool

	// Ref is the branch, tag, or commit for git sources.
	Ref string

	// ManifestPath is the in-repo manifest path for git sources.
	// Empty means search the well-known manifest names.
	ManifestPath string
}

// ParseLocator normalizes a raw source specification. Relative file
// paths are resolved against baseDir.
//
// Recognized forms:
//
//	/path/to/manifest.yaml          local manifest
//	/path/to/docs.zip               local bundle
//	https://host/manifest.json      remote manifest
//	https://host/docs.zip           remote bundle
//	git+https://host/repo#ref:path  git repository
//	https://host/repo.git           git repository
func ParseLocator(spec, baseDir string) (*Descriptor, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, errors.Validation("empty source locator", nil)
	}

	if strings.HasPrefix(spec, "git+") {
		return parseGitLocator(strings.TrimPrefix(spec, "git+"))
	}

	if strings.HasPrefix(spec, "http://") || strings.HasPrefix(spec, "https://") {
		base := spec
		if i := strings.IndexAny(base, "?#"); i >= 0 {
			base = base[:i]
		}
		if strings.HasSuffix(base, ".git") {
			return parseGitLocator(spec)
		}
		return &Descriptor{
			Protocol: ProtocolHTTP,
			Location: spec,
			IsBundle: strings.HasSuffix(base, ".zip"),
		}, nil
	}

	path := strings.TrimPrefix(spec, "file://")
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	path = filepath.Clean(path)

	if strings.HasSuffix(path, ".git") {
		return &Descriptor{Protocol: ProtocolGit, Location: path}, nil
	}
	return &Descriptor{
		Protocol: ProtocolFile,
		Location: path,
		IsBundle: strings.HasSuffix(path, ".zip"),
	}, nil
}

// parseGitLocator splits an optional "#ref" or "#ref:manifest/path"
// fragment off a clone URL.
func parseGitLocator(spec string) (*Descriptor, error) {
	d := &Descriptor{Protocol: ProtocolGit, Location: spec}
	if i := strings.Index(spec, "#"); i >= 0 {
		d.Location = spec[:i]
		frag := spec[i+1:]
		if j := strings.Index(frag, ":"); j >= 0 {
			d.Ref = frag[:j]
			d.ManifestPath = frag[j+1:]
		} else {
			d.Ref = frag
		}
	}
	if d.Location == "" {
		return nil, errors.Validation("git locator has no repository URL", nil)
	}
	return d, nil
}

// Normalized returns the canonical string form used for collection ID
// derivation. Two specs naming the same source normalize identically.
func (d *Descriptor) Normalized() string {
	var b strings.Builder
	b.WriteString(string(d.Protocol))
	b.WriteString("://")
	b.WriteString(d.Location)
	if d.Ref != "" {
		b.WriteString("#")
		b.WriteString(d.Ref)
	}
	if d.ManifestPath != "" {
		b.WriteString(":")
		b.WriteString(d.ManifestPath)
	}
	return b.String()
}

// CollectionID derives the stable collection identifier from the
// normalized locator. Identical locators always yield the same ID, so
// re-registering a source is idempotent.
func (d *Descriptor) CollectionID() string {
	sum := sha256.Sum256([]byte(d.Normalized()))
	return hex.EncodeToString(sum[:])[:12]
}
