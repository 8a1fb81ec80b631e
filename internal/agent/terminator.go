// ABOUTME: Termination strategies used when an agent is crashed on purpose.
// ABOUTME: Either kill the agent's process group or ask the agent to exit in-band.

package agent

import (
	"errors"
	"fmt"
)

// CrashCommand is the reserved in-band message asking an agent to exit.
const CrashCommand = "crash"

// ErrNoProcess indicates a connection has no spawned process to signal.
var ErrNoProcess = errors.New("agent has no process handle")

// Terminator stops the agent behind a live connection. The connection is
// closed by the caller afterwards whatever the result.
type Terminator interface {
	Terminate(c *Connection) error
	Name() string
}

// GroupKill sends SIGKILL to the whole process group of the spawned agent.
type GroupKill struct{}

func (GroupKill) Name() string { return "signal" }

func (GroupKill) Terminate(c *Connection) error {
	p := c.Process()
	if p == nil {
		return ErrNoProcess
	}
	return p.Kill()
}

// CrashMessage asks the agent to terminate itself over the existing socket.
type CrashMessage struct{}

func (CrashMessage) Name() string { return "message" }

func (CrashMessage) Terminate(c *Connection) error {
	return c.Send(CrashCommand)
}

// NewTerminator selects a strategy by policy name: "signal", "message", or
// "auto" (the platform default).
func NewTerminator(policy string) (Terminator, error) {
	switch policy {
	case "", "auto":
		return defaultTerminator(), nil
	case "signal":
		return GroupKill{}, nil
	case "message":
		return CrashMessage{}, nil
	default:
		return nil, fmt.Errorf("unknown crash policy %q", policy)
	}
}
