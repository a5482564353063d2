//go:build !windows

package supervisor

import (
	"errors"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// DefaultShell runs commands as `/bin/sh -c <command>`.
const DefaultShell = "/bin/sh"

type unixChild struct {
	cmd *exec.Cmd
}

// startDetached starts the command in its own session so terminal signals
// aimed at the daemon do not reach it. Standard streams go to /dev/null.
func startDetached(shell, command string) (Child, error) {
	cmd := exec.Command(shell, "-c", command)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &unixChild{cmd: cmd}, nil
}

func (c *unixChild) Pid() int {
	return c.cmd.Process.Pid
}

func (c *unixChild) Poll() (ExitStatus, bool, error) {
	var ws unix.WaitStatus
	pid, err := unix.Wait4(c.cmd.Process.Pid, &ws, unix.WNOHANG, nil)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return ExitStatus{}, false, nil
		}
		_ = c.cmd.Process.Release()
		return ExitStatus{}, true, err
	}
	if pid == 0 {
		return ExitStatus{}, false, nil
	}

	_ = c.cmd.Process.Release()
	if ws.Signaled() {
		return ExitStatus{Code: -1, Signal: ws.Signal().String()}, true, nil
	}
	return ExitStatus{Code: ws.ExitStatus()}, true, nil
}
