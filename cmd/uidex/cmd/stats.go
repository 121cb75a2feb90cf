package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/uidex/uidex/internal/store"
	"github.com/uidex/uidex/internal/ui"
)

func newStatsCmd() *cobra.Command {
	var (
		clear      bool
		yes        bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show collection statistics",
		Long: `Show how many components are indexed, broken down by library,
source kind, and category. With --clear, remove every indexed record
instead (requires --yes).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if clear {
				return runClear(cmd.Context(), cmd, yes, jsonOutput)
			}
			return runStats(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&clear, "clear", false, "Remove every indexed record")
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the --clear operation")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
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

	stats, err := a.service.Stats(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	printStats(ui.NewPrinter(cmd.OutOrStdout()), stats)
	return nil
}

func runClear(ctx context.Context, cmd *cobra.Command, yes, jsonOutput bool) error {
	if !yes {
		return fmt.Errorf("--clear removes every indexed record; pass --yes to confirm")
	}

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

	removed, err := a.service.Clear(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]int{"removed": removed})
	}

	ui.NewPrinter(cmd.OutOrStdout()).Successf("Removed %d component(s)", removed)
	return nil
}

func printStats(p *ui.Printer, stats *store.CollectionStats) {
	p.Headerf("Collection %s", stats.Collection)
	p.KV("Components", strconv.Itoa(stats.TotalComponents))
	p.KV("Dimensions", strconv.Itoa(stats.Dimensions))
	printBreakdown(p, "Libraries", stats.Libraries)
	printBreakdown(p, "Source kinds", stats.SourceKinds)
	printBreakdown(p, "Categories", stats.Categories)
}

func printBreakdown(p *ui.Printer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	p.Printf("")
	p.Headerf("%s", title)
	for _, k := range keys {
		p.KV(k, strconv.Itoa(counts[k]))
	}
}
