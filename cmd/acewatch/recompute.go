package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Vodeneev/acewatch/internal/alerting"
	"github.com/Vodeneev/acewatch/internal/pkg/performance"
)

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Rebuild the H2H and Streaks tables from the Results log once",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sink, err := openSink(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to open sink: %w", err)
		}
		defer sink.Close()
		if err := sink.EnsureHeaders(ctx); err != nil {
			return fmt.Errorf("failed to prepare sink tables: %w", err)
		}

		// No state store: recompute reads the log and never ingests.
		engine, err := buildEngine(ctx, cfg, cfg.Names(), sink, nil, alerting.LogNotifier{}, performance.NewTracker(0))
		if err != nil {
			return err
		}
		tables, err := engine.Recompute(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Recomputed %d matchups (%d unusable log rows skipped)\n", len(tables.H2H), tables.Skipped)
		for _, r := range tables.Streaks {
			fmt.Fprintf(out, "  %-40s streak %-20s x%d  last %d: %s\n", r.MatchupID, r.Owner, r.Length, r.LastN, r.Sequence)
		}
		return nil
	},
}
