// ABOUTME: history subcommand: lists recorded grading runs with their scores.

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/ovid-master/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent grading runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	db, err := store.NewSQLiteStore(cfg.Grading.Database)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer db.Close()

	runs, err := db.ListRuns(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No grading runs recorded.")
		return nil
	}

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	for _, r := range runs {
		score := fmt.Sprintf("%d/%d", r.Passed, r.Total)
		fmt.Fprintf(out, "%s  %s  %-20s ", r.ID[:min(8, len(r.ID))], r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.TestsDir)
		if r.Passed == r.Total {
			green.Fprintln(out, score)
		} else {
			red.Fprintln(out, score)
		}
	}
	return nil
}
