// ABOUTME: Root cobra command for ovid-tools: shared flags, config, and logger.
// ABOUTME: Subcommands register themselves in init().

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/2389/ovid-master/internal/config"
	"github.com/2389/ovid-master/internal/logging"
)

// Version is set at build time.
var Version = "dev"

var (
	configFlag string
	verbose    bool

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:     "ovid-tools",
	Short:   "Grading and inspection tools for ovid-master runs",
	Version: Version,
	Long: `ovid-tools grades testcases against ovid-master, checks replica dumps
for consistency, generates cluster configurations, and shows grading history.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// silentExitError ends the command with Code without printing anything.
type silentExitError struct {
	Code int
}

func (e *silentExitError) Error() string {
	return fmt.Sprintf("exit %d", e.Code)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "config file (YAML or TOML); defaults to $"+config.EnvConfigPath)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log progress to stderr")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.LoadOrDefault(config.ResolvePath(configFlag))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	logger = logging.New(cfg.Logging, cmd.ErrOrStderr()).With("invocation", uuid.NewString())
	slog.SetDefault(logger)
	return nil
}

// Execute runs the root command and returns an exit code.
func Execute() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var silent *silentExitError
		if errors.As(err, &silent) {
			return silent.Code
		}
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return 1
	}
	return 0
}

func exitWith(code int) error {
	if code == 0 {
		return nil
	}
	return &silentExitError{Code: code}
}
