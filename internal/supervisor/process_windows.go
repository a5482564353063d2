//go:build windows

package supervisor

import (
	"errors"
	"os/exec"
	"syscall"
)

// DefaultShell runs commands as `cmd /C <command>`.
const DefaultShell = "cmd"

type windowsChild struct {
	cmd  *exec.Cmd
	done chan error
}

// Windows has no non-blocking wait; a goroutine waits and Poll checks its
// result channel without blocking.
func startDetached(shell, command string) (Child, error) {
	cmd := exec.Command(shell, "/C", command)
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	c := &windowsChild{cmd: cmd, done: make(chan error, 1)}
	go func() {
		c.done <- cmd.Wait()
	}()
	return c, nil
}

func (c *windowsChild) Pid() int {
	return c.cmd.Process.Pid
}

func (c *windowsChild) Poll() (ExitStatus, bool, error) {
	select {
	case err := <-c.done:
		if err == nil {
			return ExitStatus{}, true, nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return ExitStatus{Code: exitErr.ExitCode()}, true, nil
		}
		return ExitStatus{}, true, err
	default:
		return ExitStatus{}, false, nil
	}
}
