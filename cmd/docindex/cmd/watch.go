package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/docindex/docindex/internal/source"
	"github.com/docindex/docindex/internal/syncer"
	"github.com/docindex/docindex/internal/watch"
)

func newWatchCmd() *cobra.Command {
	var name string
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch <source>",
		Short: "Sync a local source and re-sync whenever its files change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			app.markDirty()

			wd, err := workingDir()
			if err != nil {
				return err
			}

			desc, err := source.ParseLocator(args[0], wd)
			if err != nil {
				return err
			}
			if desc.Protocol != source.ProtocolFile || desc.IsBundle {
				return fmt.Errorf("watch only supports local manifest sources")
			}

			resync := func(ctx context.Context, force bool) {
				result, err := app.coord.Sync(ctx, name, args[0], wd, syncer.Options{Force: force})
				if err != nil {
					slog.Error("watch_sync_failed", slog.String("error", err.Error()))
					return
				}
				if result.Added+result.Updated+result.Removed > 0 {
					_ = app.renderer.SyncResult(result)
					if err := app.vectors.Save(app.vectorPath); err != nil {
						slog.Error("vector_index_save_failed", slog.String("error", err.Error()))
					}
				}
			}

			resync(cmd.Context(), false)

			// Forced: the manifest hash does not change when only
			// document files change.
			watcher, err := watch.New(filepath.Dir(desc.Location), debounce, func(ctx context.Context) {
				resync(ctx, true)
			}, nil)
			if err != nil {
				return err
			}
			defer watcher.Close()

			watcher.Run(cmd.Context())
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name for the collection")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounceWindow, "Quiet window before re-syncing")
	return cmd
}
