// ABOUTME: check subcommand: compares replica output dumps line by line.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/2389/ovid-master/internal/consistency"
)

var checkCmd = &cobra.Command{
	Use:   "check [glob]",
	Short: "Check replica output dumps for consistency",
	Long: `Compare the replica dumps line by line and report the first line where
they disagree. Files shorter than the others only take part up to their
length.

The default glob is ` + consistency.DefaultPattern + `. Exits 1 on an inconsistency.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	pattern := consistency.DefaultPattern
	if len(args) == 1 {
		pattern = args[0]
	}

	report, err := consistency.CheckGlob(pattern)
	if err != nil {
		return err
	}
	logger.Debug("checked dumps", "files", len(report.Files))

	fmt.Fprintln(cmd.OutOrStdout(), report.String())
	if !report.Consistent() {
		return exitWith(1)
	}
	return nil
}
