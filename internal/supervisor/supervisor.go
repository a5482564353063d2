// Package supervisor launches rendered commands as detached children and
// collects their exit status without ever blocking the caller.
package supervisor

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Job is a rendered command together with the file that triggered it.
type Job struct {
	Path    string
	Command string
}

// ExitStatus describes how a child ended.
type ExitStatus struct {
	Code   int
	Signal string
}

func (s ExitStatus) String() string {
	if s.Signal != "" {
		return "signal: " + s.Signal
	}
	return fmt.Sprintf("exit status %d", s.Code)
}

// Child is a running process that can be polled without blocking.
type Child interface {
	Pid() int
	// Poll reports whether the child has exited. A non-nil error means the
	// child can no longer be polled.
	Poll() (ExitStatus, bool, error)
}

// StartFunc launches command through shell with no standard streams.
type StartFunc func(shell, command string) (Child, error)

type supervised struct {
	id      string
	child   Child
	command string
	started time.Time
}

// Supervisor is a flat registry of fire-and-forget children. It is driven
// from a single goroutine and does no locking.
type Supervisor struct {
	shell    string
	start    StartFunc
	children []supervised
	logger   zerolog.Logger
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithStart replaces the process launcher.
func WithStart(start StartFunc) Option {
	return func(s *Supervisor) {
		s.start = start
	}
}

// New creates a supervisor. An empty shell means DefaultShell.
func New(shell string, logger zerolog.Logger, opts ...Option) *Supervisor {
	if shell == "" {
		shell = DefaultShell
	}
	s := &Supervisor{
		shell:  shell,
		start:  startDetached,
		logger: logger.With().Str("component", "supervisor").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Spawn launches a job. Failures are logged and returned; there is no retry.
func (s *Supervisor) Spawn(job Job) error {
	id := uuid.NewString()
	s.logger.Info().
		Str("execId", id).
		Str("file", job.Path).
		Str("command", job.Command).
		Msg("Executing command")

	child, err := s.start(s.shell, job.Command)
	if err != nil {
		s.logger.Error().Err(err).Str("execId", id).Str("command", job.Command).Msg("Unable to launch command")
		return fmt.Errorf("failed to launch command: %w", err)
	}

	s.children = append(s.children, supervised{
		id:      id,
		child:   child,
		command: job.Command,
		started: time.Now(),
	})
	s.logger.Info().Str("execId", id).Int("pid", child.Pid()).Msg("Child spawned")
	return nil
}

// Reap polls every child once and forgets those that exited or can no
// longer be polled. Running children keep their order. It returns the
// number of children removed.
func (s *Supervisor) Reap() int {
	kept := s.children[:0]
	removed := 0
	for _, c := range s.children {
		status, exited, err := c.child.Poll()
		switch {
		case err != nil:
			s.logger.Warn().
				Err(err).
				Str("execId", c.id).
				Int("pid", c.child.Pid()).
				Msg("Error while checking child")
			removed++
		case exited:
			s.logger.Info().
				Str("execId", c.id).
				Int("pid", c.child.Pid()).
				Str("status", status.String()).
				Dur("runtime", time.Since(c.started)).
				Msg("Child exited")
			removed++
		default:
			kept = append(kept, c)
		}
	}
	for i := len(kept); i < len(s.children); i++ {
		s.children[i] = supervised{}
	}
	s.children = kept
	return removed
}

// Len returns the number of children not yet reaped.
func (s *Supervisor) Len() int {
	return len(s.children)
}

// Pids returns the process ids of children not yet reaped.
func (s *Supervisor) Pids() []int {
	pids := make([]int, len(s.children))
	for i, c := range s.children {
		pids[i] = c.child.Pid()
	}
	return pids
}
