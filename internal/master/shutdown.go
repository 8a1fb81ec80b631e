// ABOUTME: Orderly and forced teardown of a run: agents, external cleanup, exit code.
// ABOUTME: Forced shutdown skips waiting for the outstanding acknowledgment.

package master

import (
	"context"
	"os/exec"
	"time"
)

// Shutdown tears the run down and returns the exit code.
//
// Unless forced, it first waits for any outstanding acknowledgment; if ctx
// ends during that wait the shutdown becomes forced. Every live agent is then
// terminated, the cleanup action runs best-effort, and after a short pause
// the registry is closed.
func (m *Master) Shutdown(ctx context.Context, forced bool, cause error) int {
	if !forced {
		if err := m.gate.Wait(ctx); err != nil {
			forced = true
			cause = context.Cause(ctx)
		}
	}
	if m.watchdog != nil {
		m.watchdog.Stop()
	}

	if forced {
		m.logger.Warn("forced shutdown", "cause", cause)
	} else {
		m.logger.Info("shutting down")
	}

	for _, c := range m.registry.TakeAll() {
		if err := c.Terminate(); err != nil {
			m.logger.Warn("terminating agent", "agent_id", int(c.ID), "error", err)
		}
	}

	if err := m.cleanup(); err != nil {
		m.logger.Debug("cleanup failed", "error", err)
	}
	time.Sleep(m.cfg.Timing.CleanupPause)

	m.registry.Close()

	if m.debug {
		m.out.Line("Goodbye :)")
	}

	if forced {
		return m.cfg.Shutdown.ForcedExitCode
	}
	return 0
}

// runCleanupCommand starts the configured cleanup command with its output
// discarded. It does not wait for the command to finish.
func (m *Master) runCleanupCommand() error {
	argv := m.cfg.Cleanup.Command
	if len(argv) == 0 {
		return nil
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
