// Package cmd provides the CLI commands for docindex.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docindex/docindex/pkg/version"
)

var (
	flagConfig string
	flagJSON   bool
)

// NewRootCmd creates the root command for the docindex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docindex",
		Short: "Index and search documentation with hybrid retrieval",
		Long: `docindex keeps collections of documents synchronized from local
manifests, remote URLs, git repositories, and zip bundles, and answers
hybrid (semantic + keyword) queries against the indexed chunks.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("docindex version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to a YAML config file")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Emit JSON instead of formatted text")

	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newCollectionsCmd())
	cmd.AddCommand(newDocsCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command with signal-aware cancellation.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}
