// ABOUTME: Tests for the ovid-tools subcommands driven through the root command.

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestGenconfig(t *testing.T) {
	out, err := execute(t, "genconfig", "1", "1", "script")
	require.NoError(t, err)

	var table map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &table))
	assert.Len(t, table, 5)
	assert.Equal(t, "paxos_controller", table["999"]["type"])

	_, err = execute(t, "genconfig", "0", "1", "script")
	assert.Error(t, err)
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "replica_1.output"), []byte("a\nb\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "replica_2.output"), []byte("a\nb\n"), 0644))
	pattern := filepath.Join(dir, "replica*.output")

	out, err := execute(t, "check", pattern)
	require.NoError(t, err)
	assert.Equal(t, "All good :)\n", out)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "replica_3.output"), []byte("a\nc\n"), 0644))
	out, err = execute(t, "check", pattern)

	var silent *silentExitError
	require.ErrorAs(t, err, &silent)
	assert.Equal(t, 1, silent.Code)
	assert.Equal(t, "Inconsistency detected in line 2\nb,\nb,\nc\n", out)
}

func TestHistory_Empty(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "tools.yaml")
	db := filepath.Join(t.TempDir(), "history.db")
	require.NoError(t, os.WriteFile(cfgPath, []byte("grading:\n  database: "+db+"\n"), 0644))

	out, err := execute(t, "--config", cfgPath, "history")
	require.NoError(t, err)
	assert.Equal(t, "No grading runs recorded.\n", out)
}
