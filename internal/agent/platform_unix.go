//go:build unix

// ABOUTME: Unix process-group handling for spawned agents.
// ABOUTME: Agents get their own group and are killed group-wide with SIGKILL.

package agent

import (
	"errors"
	"os/exec"
	"runtime"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup puts the child in its own process group so a crash takes
// down everything the agent forked.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcessGroup(pid int) error {
	if pid <= 0 {
		return ErrNoProcess
	}
	pgid, err := unix.Getpgid(pid)
	if err != nil {
		if errors.Is(err, unix.ESRCH) {
			return nil
		}
		return err
	}
	err = unix.Kill(-pgid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

// macOS agents are stopped in-band; elsewhere the process group is killed.
func defaultTerminator() Terminator {
	if runtime.GOOS == "darwin" {
		return CrashMessage{}
	}
	return GroupKill{}
}
