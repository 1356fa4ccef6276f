package cmd

import (
	"github.com/spf13/cobra"

	"github.com/docindex/docindex/internal/syncer"
)

func newSyncCmd() *cobra.Command {
	var name string
	var force bool

	cmd := &cobra.Command{
		Use:   "sync <source>",
		Short: "Register or refresh a collection from a source",
		Long: `Sync reconciles a collection with its source. The source may be a
local manifest path, an http(s) manifest URL, a git repository
(git+URL#ref or a .git URL), or a zip bundle containing a manifest.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			wd, err := workingDir()
			if err != nil {
				return err
			}

			result, err := app.coord.Sync(cmd.Context(), name, args[0], wd, syncer.Options{Force: force})
			if err != nil {
				return err
			}
			app.markDirty()
			return app.renderer.SyncResult(result)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name for the collection")
	cmd.Flags().BoolVar(&force, "force", false, "Re-sync even when the manifest is unchanged")
	return cmd
}
