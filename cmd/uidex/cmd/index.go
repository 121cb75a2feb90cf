package cmd

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/uidex/uidex/internal/logging"
	"github.com/uidex/uidex/internal/mcp"
	"github.com/uidex/uidex/internal/ui"
)

func newIndexCmd() *cobra.Command {
	var library string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "index <package[@version] | storybook-url>",
		Short: "Fetch a source and index its components",
		Long: `Fetch an npm package or parse a Storybook site, normalize its UI
components, and index them into the vector store.

Examples:
  uidex index @mui/material
  uidex index antd@5.12.0
  uidex index https://storybook.example.com --library acme-ui`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), cmd, args[0], library, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&library, "library", "", "Library name override for storybook sources")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the index report as JSON")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, target, library string, jsonOutput bool) error {
	logger, cleanup := cliLogging()
	defer cleanup()

	cfg, err := loadConfig(rootOffline)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var out *mcp.IndexOutput
	if isStorybookURL(target) {
		out, err = a.service.IndexStorybook(ctx, target, library)
	} else {
		pkg, ver := splitPackageVersion(target)
		out, err = a.service.IndexPackage(ctx, pkg, ver)
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	printIndexReport(ui.NewPrinter(cmd.OutOrStdout()), out)
	return nil
}

func printIndexReport(p *ui.Printer, out *mcp.IndexOutput) {
	p.Headerf("Indexed %s", out.Source)
	p.KV("Inserted", strconv.Itoa(out.Inserted))
	p.KV("Updated", strconv.Itoa(out.Updated))
	p.KV("Unchanged", strconv.Itoa(out.Unchanged))
	if out.Failed > 0 {
		p.KV("Failed", strconv.Itoa(out.Failed))
		for _, outcome := range out.Outcomes {
			if outcome.Error != "" {
				p.Errorf("  %s: %s", outcome.Name, outcome.Error)
			}
		}
	}
	for _, skipped := range out.Skipped {
		p.Warnf("  skipped %s: %s", skipped.Name, skipped.Reason)
	}
}

// isStorybookURL distinguishes storybook sites from package names.
// Package names can contain dots (lodash.debounce) so only an explicit
// scheme or a www. prefix marks a URL.
func isStorybookURL(target string) bool {
	return strings.Contains(target, "://") || strings.HasPrefix(target, "www.")
}

// splitPackageVersion splits "name@version". The index is searched
// from the right so scoped names (@scope/pkg) stay intact.
func splitPackageVersion(arg string) (name, version string) {
	if i := strings.LastIndex(arg, "@"); i > 0 {
		return arg[:i], arg[i+1:]
	}
	return arg, ""
}

// cliLogging sets up quiet file logging for one-shot CLI commands.
// Terminal output stays clean; diagnostics go to the log file.
func cliLogging() (*slog.Logger, func()) {
	cfg := logging.DefaultConfig()
	cfg.WriteToStderr = false
	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}
	}
	slog.SetDefault(logger)
	return logger, cleanup
}
