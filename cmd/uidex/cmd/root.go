// Package cmd provides the CLI commands for UIdex.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/uidex/uidex/pkg/version"
)

// NewRootCmd creates the root command for the uidex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uidex",
		Short: "UI component index and search MCP server",
		Long: `UIdex indexes metadata about UI components - sourced from the npm
registry and Storybook documentation sites - into a vector store, and
answers semantic queries for AI coding assistants over MCP.

Running 'uidex' with no arguments starts the MCP server on stdio.`,
		Version: version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return cmd.Help()
			}
			// Default behavior: serve MCP on stdio.
			return runServe(cmd.Context(), rootOffline)
		},
	}

	cmd.SetVersionTemplate("uidex version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&rootOffline, "offline", false,
		"Use static embeddings and the in-memory store (no network services)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// rootOffline is shared by the root default and the subcommands.
var rootOffline bool

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
