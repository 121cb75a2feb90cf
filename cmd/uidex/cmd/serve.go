package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/uidex/uidex/internal/logging"
	"github.com/uidex/uidex/internal/mcp"
	"github.com/uidex/uidex/pkg/version"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: `Run the UIdex MCP server. The server speaks JSON-RPC over stdio,
so stdout carries protocol messages exclusively; logs go to
~/.uidex/logs/server.log.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), rootOffline)
		},
	}
}

func runServe(ctx context.Context, offline bool) error {
	cfg, err := loadConfig(offline)
	if err != nil {
		return err
	}

	// Stdout must stay clean for JSON-RPC from here on.
	logger, cleanup, err := logging.SetupMCPMode(cfg.Server.LogLevel)
	if err != nil {
		return err
	}
	defer cleanup()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := mcp.NewServer(a.service, version.Version, logger)
	if err != nil {
		return err
	}

	return srv.Serve(ctx, cfg.Server.Transport)
}
