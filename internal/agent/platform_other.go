//go:build !unix

// ABOUTME: Fallback process handling where process groups are unavailable.

package agent

import (
	"os"
	"os/exec"
)

func setProcessGroup(cmd *exec.Cmd) {}

func killProcessGroup(pid int) error {
	if pid <= 0 {
		return ErrNoProcess
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	return p.Kill()
}

func defaultTerminator() Terminator {
	return CrashMessage{}
}
