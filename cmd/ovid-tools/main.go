// ABOUTME: Entry point for ovid-tools, the companion CLI for grading and checking test runs.
// ABOUTME: Subcommands: grade, check, genconfig, history.

package main

import "os"

func main() {
	os.Exit(Execute())
}
