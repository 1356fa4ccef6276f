package cmd

import (
	"github.com/spf13/cobra"
)

func newDocsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Inspect and manage documents within a collection",
	}

	cmd.AddCommand(newDocsListCmd())
	cmd.AddCommand(newDocsGetCmd())
	cmd.AddCommand(newDocsOutlineCmd())
	cmd.AddCommand(newDocsSectionCmd())
	cmd.AddCommand(newDocsRelatedCmd())
	cmd.AddCommand(newDocsDeleteCmd())
	return cmd
}

func newDocsListCmd() *cobra.Command {
	var cursor string
	var limit int

	cmd := &cobra.Command{
		Use:   "list <collection-id>",
		Short: "List documents in a collection, paginated",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			infos, next, err := app.content.ListDocuments(cmd.Context(), args[0], cursor, limit)
			if err != nil {
				return err
			}
			return app.renderer.Documents(infos, next)
		},
	}

	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from a previous page")
	cmd.Flags().IntVar(&limit, "limit", 50, "Page size")
	return cmd
}

func newDocsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <collection-id> <document-id>",
		Short: "Print a document's full content",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			doc, err := app.content.GetDocument(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return app.renderer.Text(doc.Content)
		},
	}
}

func newDocsOutlineCmd() *cobra.Command {
	var depth int

	cmd := &cobra.Command{
		Use:   "outline <collection-id> <document-id>",
		Short: "Print a document's heading outline",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			headings, err := app.content.Outline(cmd.Context(), args[0], args[1], depth)
			if err != nil {
				return err
			}
			return app.renderer.Outline(headings)
		},
	}

	cmd.Flags().IntVar(&depth, "depth", 0, "Deepest heading level to include, 0 for all")
	return cmd
}

func newDocsSectionCmd() *cobra.Command {
	var subsections bool

	cmd := &cobra.Command{
		Use:   "section <collection-id> <document-id> <heading>",
		Short: "Extract one section's body by heading substring",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			section, err := app.content.Section(cmd.Context(), args[0], args[1], args[2], subsections)
			if err != nil {
				return err
			}
			return app.renderer.Section(section)
		},
	}

	cmd.Flags().BoolVar(&subsections, "subsections", false, "Include nested subsections")
	return cmd
}

func newDocsRelatedCmd() *cobra.Command {
	var limit int
	var includeSelf bool

	cmd := &cobra.Command{
		Use:   "related <collection-id> <document-id>",
		Short: "Find chunks similar to a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			results, err := app.engine.FindRelated(cmd.Context(), args[0], args[1], limit, !includeSelf)
			if err != nil {
				return err
			}
			return app.renderer.SearchResults("related to "+args[1], results)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of results")
	cmd.Flags().BoolVar(&includeSelf, "include-self", false, "Include the source document's own chunks")
	return cmd
}

func newDocsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <collection-id> <document-id>...",
		Short: "Delete documents from a collection",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.content.Delete(cmd.Context(), args[0], args[1:]); err != nil {
				return err
			}
			app.markDirty()
			return app.renderer.Text("deleted")
		},
	}
}
