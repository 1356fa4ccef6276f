// Package syncer reconciles a collection's stored documents with an
// external source of truth, minimizing redundant fetches and writes.
package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/docindex/docindex/internal/docs"
	"github.com/docindex/docindex/internal/source"
	"github.com/docindex/docindex/internal/store"
)

// DefaultConcurrency bounds parallel document processing within one
// sync so the embedding provider is not overwhelmed.
const DefaultConcurrency = 4

// Options tunes one sync invocation.
type Options struct {
	// Force re-syncs even when the manifest hash is unchanged.
	Force bool
}

// Result reports what one sync changed. Counts stay accurate under
// partial per-entry failure.
type Result struct {
	CollectionID string `json:"collectionId"`
	Added        int    `json:"added"`
	Updated      int    `json:"updated"`
	Removed      int    `json:"removed"`
	Total        int    `json:"total"`
}

// Coordinator drives add/update/remove operations against the content
// store from resolved source entries.
type Coordinator struct {
	content     *docs.ContentStore
	fetcher     source.Fetcher
	concurrency int
	logger      *slog.Logger
}

// New creates a sync coordinator. concurrency <= 0 selects the default.
func New(content *docs.ContentStore, fetcher source.Fetcher, concurrency int, logger *slog.Logger) *Coordinator {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if fetcher == nil {
		fetcher = source.NewFetcher()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		content:     content,
		fetcher:     fetcher,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Sync reconciles the collection named by sourceSpec. Relative local
// specs resolve against baseDir. An unchanged manifest hash is a
// no-op unless forced.
func (c *Coordinator) Sync(ctx context.Context, collectionName, sourceSpec, baseDir string, opts Options) (*Result, error) {
	start := time.Now()

	desc, err := source.ParseLocator(sourceSpec, baseDir)
	if err != nil {
		return nil, err
	}
	collectionID := desc.CollectionID()

	resolved, err := source.Resolve(ctx, desc, c.fetcher)
	if err != nil {
		return nil, err
	}
	defer resolved.Cleanup()

	existing, err := c.content.Meta().GetCollection(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.ManifestHash == resolved.Hash && !opts.Force {
		c.logger.Debug("sync_skipped_unchanged_manifest",
			slog.String("collection", collectionID))
		return &Result{CollectionID: collectionID}, nil
	}

	entries, err := resolved.Entries()
	if err != nil {
		return nil, err
	}

	result, err := c.applyEntries(ctx, collectionID, entries)
	if err != nil {
		return nil, err
	}

	col := &store.Collection{
		ID:           collectionID,
		Name:         collectionName,
		Version:      resolved.Manifest.Version,
		Description:  resolved.Manifest.Description,
		Locator:      desc.Normalized(),
		ManifestHash: resolved.Hash,
		LastSyncedAt: time.Now().UTC(),
	}
	if col.Name == "" {
		col.Name = resolved.Manifest.Name
	}
	if err := c.content.Meta().SaveCollection(ctx, col); err != nil {
		return nil, err
	}

	c.logger.Info("sync_completed",
		slog.String("collection", collectionID),
		slog.Int("added", result.Added),
		slog.Int("updated", result.Updated),
		slog.Int("removed", result.Removed),
		slog.Int("total", result.Total),
		slog.Duration("duration", time.Since(start)))

	return result, nil
}

// entryPlan classifies one resolved entry against the stored state.
type entryPlan struct {
	entry      source.Entry
	isNew      bool
	storedHash string
}

// applyEntries diffs resolved entries against stored documents and
// applies adds, updates, and removals. A per-entry fetch failure is
// logged and skipped without aborting the rest.
func (c *Coordinator) applyEntries(ctx context.Context, collectionID string, entries []source.Entry) (*Result, error) {
	storedIDs, err := c.content.Meta().ListDocumentIDs(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	stored := make(map[string]bool, len(storedIDs))
	for _, id := range storedIDs {
		stored[id] = true
	}

	resolvedSet := make(map[string]bool, len(entries))
	var plans []entryPlan
	for _, e := range entries {
		resolvedSet[e.ID] = true
		plan := entryPlan{entry: e, isNew: !stored[e.ID]}
		if !plan.isNew {
			hash, err := c.content.Meta().GetDocumentHash(ctx, collectionID, e.ID)
			if err != nil {
				return nil, err
			}
			plan.storedHash = hash
			// Manifest-declared hashes decide without fetching.
			if e.Hash != "" && e.Hash == hash {
				continue
			}
		}
		plans = append(plans, plan)
	}

	var removals []string
	for _, id := range storedIDs {
		if !resolvedSet[id] {
			removals = append(removals, id)
		}
	}

	result := &Result{CollectionID: collectionID, Total: len(entries)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, c.concurrency)

	for _, plan := range plans {
		plan := plan
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return gctx.Err()
			}

			content, err := c.fetcher.Fetch(gctx, plan.entry.Locator)
			if err != nil {
				c.logger.Warn("sync_entry_fetch_failed",
					slog.String("collection", collectionID),
					slog.String("doc_id", plan.entry.ID),
					slog.String("error", err.Error()))
				return nil
			}

			if !plan.isNew && docs.HashContent(string(content)) == plan.storedHash {
				return nil
			}

			changed, err := c.content.Upsert(gctx, collectionID, plan.entry.ID, string(content))
			if err != nil {
				return err
			}
			if changed {
				mu.Lock()
				if plan.isNew {
					result.Added++
				} else {
					result.Updated++
				}
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(removals) > 0 {
		if err := c.content.Delete(ctx, collectionID, removals); err != nil {
			return nil, err
		}
		result.Removed = len(removals)
	}

	return result, nil
}

// Drop removes a collection entirely. Dropping an absent collection
// succeeds silently.
func (c *Coordinator) Drop(ctx context.Context, collectionID string) error {
	return c.content.DropCollection(ctx, collectionID)
}
