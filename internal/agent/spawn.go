// ABOUTME: Spawns agent processes as <binary> <id> <host> <port> in their own process group.
// ABOUTME: Each child is reaped in the background so crashed agents never linger as zombies.

package agent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
)

// Spawner starts the external agent process for one id.
type Spawner interface {
	Spawn(ctx context.Context, id AgentID, host string, port int) (*Process, error)
}

// Process is a handle on a spawned agent.
type Process struct {
	Pid int

	cmd    *exec.Cmd
	exited chan struct{}
	err    error
}

// Exited is closed once the process has been reaped.
func (p *Process) Exited() <-chan struct{} {
	return p.exited
}

// Wait blocks until the process exits or ctx is done.
func (p *Process) Wait(ctx context.Context) error {
	select {
	case <-p.exited:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Kill force-stops the process and its group.
func (p *Process) Kill() error {
	select {
	case <-p.exited:
		return nil
	default:
	}
	return killProcessGroup(p.Pid)
}

// ExecSpawner runs a binary on the local host.
type ExecSpawner struct {
	Binary string
	// Stdout and Stderr receive the child's output; nil discards it.
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// Spawn starts Binary with (id, host, port) as arguments.
func (s *ExecSpawner) Spawn(_ context.Context, id AgentID, host string, port int) (*Process, error) {
	cmd := exec.Command(s.Binary, strconv.Itoa(int(id)), host, strconv.Itoa(port))
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s for agent %d: %w", s.Binary, id, err)
	}

	p := &Process{
		Pid:    cmd.Process.Pid,
		cmd:    cmd,
		exited: make(chan struct{}),
	}
	go func() {
		p.err = cmd.Wait()
		close(p.exited)
	}()

	if s.Logger != nil {
		s.Logger.Info("spawned agent",
			"agent_id", int(id),
			"pid", p.Pid,
			"binary", s.Binary,
			"host", host,
			"port", port,
		)
	}
	return p, nil
}
