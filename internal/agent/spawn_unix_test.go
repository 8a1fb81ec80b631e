//go:build unix

// ABOUTME: Tests for spawning agents and killing their process groups, using shell scripts.

package agent

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/2389/ovid-master/internal/logging"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "process")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

func TestExecSpawner_PassesArguments(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args")
	bin := writeScript(t, `echo "$@" > `+argsFile)

	s := &ExecSpawner{Binary: bin, Logger: logging.Discard()}
	p, err := s.Spawn(context.Background(), 12, "127.0.0.1", 5012)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Wait(ctx))

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Equal(t, "12 127.0.0.1 5012", strings.TrimSpace(string(data)))
}

func TestExecSpawner_MissingBinary(t *testing.T) {
	s := &ExecSpawner{Binary: filepath.Join(t.TempDir(), "nope")}
	_, err := s.Spawn(context.Background(), 1, "127.0.0.1", 5001)
	assert.Error(t, err)
}

func TestProcess_KillTakesDownGroup(t *testing.T) {
	dir := t.TempDir()
	ready := filepath.Join(dir, "ready")
	bin := writeScript(t, "sleep 30 &\ntouch "+ready+"\nwait")

	s := &ExecSpawner{Binary: bin, Logger: logging.Discard()}
	p, err := s.Spawn(context.Background(), 1, "127.0.0.1", 5001)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := os.Stat(ready)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	pgid, err := unix.Getpgid(p.Pid)
	require.NoError(t, err)
	assert.Equal(t, p.Pid, pgid, "agent must lead its own process group")

	require.NoError(t, p.Kill())

	select {
	case <-p.Exited():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit after group kill")
	}

	// Killing an exited process is not an error.
	assert.NoError(t, p.Kill())
}

func TestGroupKill_Terminate(t *testing.T) {
	bin := writeScript(t, "exec sleep 30")
	s := &ExecSpawner{Binary: bin}
	p, err := s.Spawn(context.Background(), 2, "127.0.0.1", 5002)
	require.NoError(t, err)

	master, _ := socketPair(t)
	c := NewConnection(ConnectionParams{
		ID:         2,
		Conn:       master,
		Process:    p,
		Terminator: GroupKill{},
		Logger:     logging.Discard(),
	})

	require.NoError(t, c.Terminate())
	assert.False(t, c.Live())

	select {
	case <-p.Exited():
	case <-time.After(5 * time.Second):
		t.Fatal("agent process survived terminate")
	}
}

