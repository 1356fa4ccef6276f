package source

import (
	"context"
	"os"
	"path/filepath"

	"github.com/docindex/docindex/internal/errors"
)

// Resolved is a source descriptor acquired down to a parsed manifest.
// BaseDir is set for local, git, and bundle sources; BaseURL for
// remote manifests. Cleanup removes any ephemeral working copy and is
// always safe to call.
type Resolved struct {
	Manifest *Manifest
	Data     []byte
	Hash     string
	BaseDir  string
	BaseURL  string
	Cleanup  func()
}

// Entries expands the resolved manifest into fetchable entries.
func (r *Resolved) Entries() ([]Entry, error) {
	return r.Manifest.Expand(r.BaseDir, r.BaseURL)
}

// Resolve acquires the manifest behind a descriptor: reading it in
// place for plain sources, checking out the repository for git
// sources, extracting the archive for bundles. Acquisition failures
// are fatal for the sync since the whole source is unreadable.
func Resolve(ctx context.Context, desc *Descriptor, fetcher Fetcher) (*Resolved, error) {
	switch {
	case desc.Protocol == ProtocolGit:
		return resolveGit(ctx, desc)
	case desc.IsBundle:
		return resolveBundle(ctx, desc, fetcher)
	case desc.Protocol == ProtocolHTTP:
		return resolveRemote(ctx, desc, fetcher)
	default:
		return resolveLocal(desc)
	}
}

func resolveLocal(desc *Descriptor) (*Resolved, error) {
	data, err := os.ReadFile(desc.Location)
	if err != nil {
		return nil, errors.Fetch("reading manifest "+desc.Location, err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}
	return &Resolved{
		Manifest: m,
		Data:     data,
		Hash:     HashManifest(data),
		BaseDir:  filepath.Dir(desc.Location),
		Cleanup:  func() {},
	}, nil
}

func resolveRemote(ctx context.Context, desc *Descriptor, fetcher Fetcher) (*Resolved, error) {
	data, err := fetcher.Fetch(ctx, desc.Location)
	if err != nil {
		return nil, err
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}
	return &Resolved{
		Manifest: m,
		Data:     data,
		Hash:     HashManifest(data),
		BaseURL:  desc.Location,
		Cleanup:  func() {},
	}, nil
}

func resolveGit(ctx context.Context, desc *Descriptor) (*Resolved, error) {
	dir, cleanup, err := gitCheckout(ctx, desc.Location, desc.Ref)
	if err != nil {
		return nil, err
	}

	manifestPath := desc.ManifestPath
	if manifestPath != "" {
		manifestPath = filepath.Join(dir, filepath.FromSlash(manifestPath))
	} else {
		manifestPath, err = findManifest(dir)
		if err != nil {
			cleanup()
			return nil, err
		}
	}

	resolved, err := resolveLocal(&Descriptor{Protocol: ProtocolFile, Location: manifestPath})
	if err != nil {
		cleanup()
		return nil, err
	}
	resolved.Cleanup = cleanup
	return resolved, nil
}

func resolveBundle(ctx context.Context, desc *Descriptor, fetcher Fetcher) (*Resolved, error) {
	zipPath := desc.Location

	var tmpZip string
	if desc.Protocol == ProtocolHTTP {
		data, err := fetcher.Fetch(ctx, desc.Location)
		if err != nil {
			return nil, err
		}
		f, err := os.CreateTemp("", "docindex-*.zip")
		if err != nil {
			return nil, errors.Fetch("staging remote bundle", err)
		}
		tmpZip = f.Name()
		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(tmpZip)
			return nil, errors.Fetch("staging remote bundle", err)
		}
		f.Close()
		zipPath = tmpZip
	}

	dir, extractCleanup, err := extractBundle(zipPath)
	if tmpZip != "" {
		os.Remove(tmpZip)
	}
	if err != nil {
		return nil, err
	}

	manifestPath, err := findManifest(dir)
	if err != nil {
		extractCleanup()
		return nil, err
	}

	resolved, err := resolveLocal(&Descriptor{Protocol: ProtocolFile, Location: manifestPath})
	if err != nil {
		extractCleanup()
		return nil, err
	}
	resolved.Cleanup = extractCleanup
	return resolved, nil
}
