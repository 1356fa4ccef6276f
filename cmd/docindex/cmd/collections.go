package cmd

import (
	"github.com/spf13/cobra"
)

func newCollectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collections",
		Short: "Manage indexed collections",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollectionsList(cmd)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List collections with document counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollectionsList(cmd)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "drop <collection-id>",
		Short: "Remove a collection and all its documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.coord.Drop(cmd.Context(), args[0]); err != nil {
				return err
			}
			app.markDirty()
			return app.renderer.Text("dropped " + args[0])
		},
	})

	return cmd
}

func runCollectionsList(cmd *cobra.Command) error {
	app, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	cols, err := app.content.ListCollections(cmd.Context())
	if err != nil {
		return err
	}
	return app.renderer.Collections(cols)
}
