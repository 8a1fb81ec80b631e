// ABOUTME: Entry point for ovid-master, the scripted test driver for distributed agents.
// ABOUTME: Reads commands from stdin, drives agents over TCP, and writes the transcript to stdout.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/2389/ovid-master/internal/agent"
	"github.com/2389/ovid-master/internal/config"
	"github.com/2389/ovid-master/internal/logging"
	"github.com/2389/ovid-master/internal/master"
	"github.com/2389/ovid-master/internal/transcript"
)

// Version is set at build time.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	fs := flag.NewFlagSet("ovid-master", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file (YAML or TOML); defaults to $"+config.EnvConfigPath)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: ovid-master [-config path] [debug] < script")
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	debug := false
	switch args := fs.Args(); {
	case len(args) == 0:
	case len(args) == 1 && args[0] == "debug":
		debug = true
	default:
		fs.Usage()
		return 1
	}

	path := config.ResolvePath(*configPath)
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading config: %v\n", err)
		return 1
	}
	if debug && cfg.Logging.Level == "warn" {
		cfg.Logging.Level = "debug"
	}

	logger := logging.New(cfg.Logging, os.Stderr).With("run_id", uuid.NewString())
	logger.Debug("starting ovid-master", "version", version, "config", path, "debug", debug)

	release, err := master.AcquireRunLock(cfg.Lock.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer release()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Agent output is only interesting while debugging a testcase.
	var agentOut io.Writer
	if debug {
		agentOut = os.Stderr
	}

	m, err := master.New(master.Params{
		Config: cfg,
		Spawner: &agent.ExecSpawner{
			Binary: cfg.Agents.Binary,
			Stdout: agentOut,
			Stderr: agentOut,
			Logger: logger,
		},
		Output: transcript.New(os.Stdout),
		Debug:  debug,
		Logger: logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	return m.Run(ctx, os.Stdin)
}
