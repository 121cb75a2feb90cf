package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/uidex/uidex/internal/component"
	"github.com/uidex/uidex/internal/search"
	"github.com/uidex/uidex/internal/store"
	"github.com/uidex/uidex/internal/ui"
)

func newSearchCmd() *cobra.Command {
	var (
		library    string
		sourceKind string
		category   string
		tag        string
		topK       int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Semantic search over indexed components",
		Long: `Search the indexed components by natural-language description.

Examples:
  uidex search accessible date picker
  uidex search "data table with sorting" --library @mui/material
  uidex search button --kind storybook --top-k 5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := search.Query{
				Text: strings.Join(args, " "),
				TopK: topK,
				Filter: store.Filter{
					Library:    library,
					SourceKind: component.SourceKind(sourceKind),
					Category:   category,
					Tag:        tag,
				},
			}
			return runSearch(cmd.Context(), cmd, q, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&library, "library", "", "Restrict results to one library")
	cmd.Flags().StringVar(&sourceKind, "kind", "", "Restrict by source kind (registry or storybook)")
	cmd.Flags().StringVar(&category, "category", "", "Restrict by category (atoms, molecules, organisms, templates)")
	cmd.Flags().StringVar(&tag, "tag", "", "Restrict to records carrying this tag")
	cmd.Flags().IntVar(&topK, "top-k", 0, "Maximum number of results (0 uses the configured default)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, q search.Query, jsonOutput bool) error {
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

	resp, err := a.service.SearchComponents(ctx, q)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	printSearchResults(ui.NewPrinter(cmd.OutOrStdout()), resp)
	return nil
}

func printSearchResults(p *ui.Printer, resp *search.Response) {
	if resp.Total == 0 {
		p.Dimf("No components matched %q. Index something first with 'uidex index'.", resp.Query)
		return
	}

	p.Headerf("%d result(s) for %q (%s)", resp.Total, resp.Query, resp.Duration.Round(time.Millisecond))
	for i, hit := range resp.Hits {
		rec := hit.Record
		p.Printf("%2d. %s  %s", i+1, componentLabel(rec), p.Scoref(hit.Score))
		if rec.Category != "" {
			p.Dimf("    category: %s", rec.Category)
		}
		if rec.Description != "" {
			p.Dimf("    %s", truncate(rec.Description, 100))
		}
	}
}

func componentLabel(rec *component.Record) string {
	if rec.Version != "" {
		return fmt.Sprintf("%s (%s@%s)", rec.Name, rec.Library, rec.Version)
	}
	return fmt.Sprintf("%s (%s)", rec.Name, rec.Library)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
