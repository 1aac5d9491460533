package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Vodeneev/acewatch/internal/extractor"
	pkgconfig "github.com/Vodeneev/acewatch/internal/pkg/config"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the config and print the catalog with canonical matchup ids",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Load already validated everything; this only reports.
		return printCatalog(cmd.OutOrStdout(), cfg)
	},
}

func printCatalog(out io.Writer, c *pkgconfig.Config) error {
	if _, err := extractor.DetectorsByName(c.Extract.Detectors, c.Extract.ScoreWhitelist); err != nil {
		return err
	}
	catalog := extractor.NewCatalog(c.Names(), c.Catalog.Matchups)

	fmt.Fprintf(out, "Source:   %s\n", c.Source.URL)
	fmt.Fprintf(out, "Sink:     %s\n", c.Sink.Driver)
	fmt.Fprintf(out, "State:    %s\n", c.State.Driver)
	fmt.Fprintf(out, "Poll:     %s (last_n=%d, cooldown=%s)\n", c.Tracker.PollInterval, c.Tracker.LastN, c.Alerts.Cooldown)
	fmt.Fprintf(out, "Matchups: %d distinct of %d configured\n", catalog.Len(), len(c.Catalog.Matchups))
	for _, id := range catalog.IDs() {
		fmt.Fprintf(out, "  %s\n", id)
	}

	known := make(map[string]bool, catalog.Len())
	for _, id := range catalog.IDs() {
		known[id] = true
	}
	fmt.Fprintf(out, "Rules:    %d\n", len(c.Alerts.Rules))
	for _, r := range c.Alerts.Rules {
		note := ""
		if !known[r.MatchupID] {
			note = "  (matchup not in catalog, rule can never fire)"
		}
		fmt.Fprintf(out, "  %s: %s >= %d%s\n", r.MatchupID, r.Player, r.MinStreak, note)
	}
	return nil
}
