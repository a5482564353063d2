// Package pidfile keeps a single daemon instance per pid file and lets the
// CLI find and signal it.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
)

var (
	ErrNotFound       = errors.New("pid file not found")
	ErrAlreadyRunning = errors.New("another instance is already running")
)

// File is a pid file guarded by an exclusive lock on <path>.lock.
type File struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// New creates a pid file manager for path.
func New(path string) *File {
	return &File{
		path:  path,
		flock: flock.New(path + ".lock"),
	}
}

// Path returns the pid file path.
func (f *File) Path() string {
	return f.path
}

// Acquire takes the lock without blocking and writes the current pid.
func (f *File) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("failed to create pid directory: %w", err)
	}

	acquired, err := f.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, f.flock.Path())
	}
	f.locked = true

	if err := os.WriteFile(f.path, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		_ = f.flock.Unlock()
		f.locked = false
		return fmt.Errorf("failed to write pid file: %w", err)
	}
	return nil
}

// Release removes the pid file and drops the lock. It is safe to call on a
// file that was never acquired.
func (f *File) Release() error {
	if !f.locked {
		return nil
	}
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove pid file: %w", err)
	}
	f.locked = false
	if err := f.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Read returns the pid stored in the file.
func (f *File) Read() (int, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to read pid file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid in %s: %q", f.path, strings.TrimSpace(string(data)))
	}
	return pid, nil
}

// Signal sends sig to the process named in the file.
func (f *File) Signal(sig os.Signal) error {
	pid, err := f.Read()
	if err != nil {
		return err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}
	if err := process.Signal(sig); err != nil {
		return fmt.Errorf("failed to signal process %d: %w", pid, err)
	}
	return nil
}

// IsRunning reports whether the process named in the file is alive.
func (f *File) IsRunning() bool {
	pid, err := f.Read()
	if err != nil {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// signal 0 probes for existence on Unix
	return process.Signal(syscall.Signal(0)) == nil
}
