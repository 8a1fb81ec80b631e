// ABOUTME: genconfig subcommand: prints a generated Paxos cluster configuration.

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/2389/ovid-master/internal/topology"
)

var genconfigFormat string

var genconfigCmd = &cobra.Command{
	Use:   "genconfig <f> <clients> <script|manual>",
	Short: "Generate a Paxos cluster configuration",
	Long: `Generate a configuration with 2f+1 replicas, the given number of clients,
and a controller, and print it to stdout.

Examples:
  ovid-tools genconfig 1 2 script > paxos.json
  ovid-tools genconfig 2 1 manual --format yaml`,
	Args: cobra.ExactArgs(3),
	RunE: runGenconfig,
}

func init() {
	rootCmd.AddCommand(genconfigCmd)
	genconfigCmd.Flags().StringVar(&genconfigFormat, "format", "json", "output format: json or yaml")
}

func runGenconfig(cmd *cobra.Command, args []string) error {
	f, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid f %q", args[0])
	}
	clients, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid client count %q", args[1])
	}

	topo, err := topology.GeneratePaxos(topology.Params{F: f, Clients: clients, Mode: args[2]})
	if err != nil {
		return err
	}
	return topo.Encode(cmd.OutOrStdout(), genconfigFormat)
}
