package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/docindex/docindex/internal/search"
)

func newSearchCmd() *cobra.Command {
	var (
		collections []string
		limit       int
		maxDistance float64
		noHybrid    bool
		rerank      bool
	)

	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Search indexed documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			query := strings.Join(args, " ")
			results, err := app.engine.Search(cmd.Context(), search.Options{
				Query:         query,
				Collections:   collections,
				Limit:         limit,
				MaxDistance:   maxDistance,
				DisableHybrid: noHybrid,
				Rerank:        rerank,
			})
			if err != nil {
				return err
			}
			return app.renderer.SearchResults(query, results)
		},
	}

	cmd.Flags().StringSliceVar(&collections, "collections", nil, "Restrict results to these collection IDs")
	cmd.Flags().IntVar(&limit, "limit", search.DefaultLimit, "Maximum number of results")
	cmd.Flags().Float64Var(&maxDistance, "max-distance", 0, "Drop results whose vector distance exceeds this value")
	cmd.Flags().BoolVar(&noHybrid, "no-hybrid", false, "Disable keyword fusion, vector search only")
	cmd.Flags().BoolVar(&rerank, "rerank", false, "Re-score candidates with the re-ranking model")
	return cmd
}
