// Package main provides the entry point for the docindex CLI.
package main

import (
	"os"

	"github.com/docindex/docindex/cmd/docindex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
