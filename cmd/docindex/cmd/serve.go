package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/docindex/docindex/internal/mcp"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the index over MCP on stdio",
		Long: `Serve exposes search, document access, and sync as Model Context
Protocol tools over stdio, for AI clients.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			// Sync tools may grow the vector index while serving.
			app.markDirty()

			server := mcp.NewServer(app.engine, app.content, app.coord, nil)
			return server.Serve(cmd.Context())
		},
	}
}

// workingDir resolves the directory relative source specs anchor to.
func workingDir() (string, error) {
	return os.Getwd()
}
