// ABOUTME: grade subcommand: runs testcases through the master and records the verdicts.
// ABOUTME: Optionally writes an HTML report of the run.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/2389/ovid-master/internal/grading"
	"github.com/2389/ovid-master/internal/store"
)

var (
	gradeHTML      string
	gradeNoHistory bool
)

var gradeCmd = &cobra.Command{
	Use:   "grade [tests-dir]",
	Short: "Run every testcase through the master and compare transcripts",
	Long: `Run the build command, then feed each <name>.input in the tests directory
to the master and compare its stdout with <name>.output.

Transcripts and stderr go to the output directory as <name>.output and
<name>.err. Each testcase prints "<name> correct" or "<name> wrong".
Exits 1 when any testcase is wrong.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGrade,
}

func init() {
	rootCmd.AddCommand(gradeCmd)
	gradeCmd.Flags().StringVar(&gradeHTML, "html", "", "write an HTML report to this file")
	gradeCmd.Flags().BoolVar(&gradeNoHistory, "no-history", false, "do not record the run in the history database")
}

func runGrade(cmd *cobra.Command, args []string) error {
	testsDir := cfg.Grading.TestsDir
	if len(args) == 1 {
		testsDir = args[0]
	}

	g := &grading.Grader{
		Config:      cfg.Grading,
		Out:         cmd.OutOrStdout(),
		BuildOutput: cmd.ErrOrStderr(),
		Logger:      logger,
	}
	if !gradeNoHistory {
		db, err := store.NewSQLiteStore(cfg.Grading.Database)
		if err != nil {
			return fmt.Errorf("opening history: %w", err)
		}
		defer db.Close()
		g.Store = db
	}

	run, err := g.Run(cmd.Context(), testsDir)
	if err != nil {
		return err
	}

	if gradeHTML != "" {
		f, err := os.Create(gradeHTML)
		if err != nil {
			return fmt.Errorf("creating report: %w", err)
		}
		defer f.Close()
		if err := grading.WriteHTML(f, run); err != nil {
			return err
		}
	}

	if run.Passed() != run.Total() {
		return exitWith(1)
	}
	return nil
}
