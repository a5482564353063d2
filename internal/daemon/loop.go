// Package daemon runs the single cooperative loop that ties the watch
// table, the dispatcher, the stability tracker and the supervisor together.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/your-org/watchexecd/internal/dispatch"
	"github.com/your-org/watchexecd/internal/stability"
	"github.com/your-org/watchexecd/internal/supervisor"
	"github.com/your-org/watchexecd/internal/watchmgr"
	"github.com/your-org/watchexecd/internal/watchspec"
	"github.com/your-org/watchexecd/internal/watchtable"
)

// DefaultPollInterval is both the event read timeout and the countdown step.
const DefaultPollInterval = 100 * time.Millisecond

// Source produces the current watch list. Invalid entries are already
// filtered out.
type Source interface {
	Load() []watchspec.Spec
}

// SourceFunc adapts a function to Source.
type SourceFunc func() []watchspec.Spec

func (f SourceFunc) Load() []watchspec.Spec { return f() }

// Loop owns all mutable daemon state. Only Signals may be touched from
// other goroutines.
type Loop struct {
	table      watchtable.Table
	source     Source
	manager    *watchmgr.Manager
	dispatcher *dispatch.Dispatcher
	tracker    *stability.Tracker
	supervisor *supervisor.Supervisor
	signals    *Signals
	interval   time.Duration
	sizeFunc   stability.SizeFunc

	queue  []supervisor.Job
	logger zerolog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithSizeFunc replaces the file size probe used for stabilization.
func WithSizeFunc(size stability.SizeFunc) Option {
	return func(l *Loop) {
		l.sizeFunc = size
	}
}

// New wires a loop. A zero interval means DefaultPollInterval.
func New(table watchtable.Table, source Source, sup *supervisor.Supervisor, signals *Signals, interval time.Duration, logger zerolog.Logger, opts ...Option) *Loop {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if signals == nil {
		signals = &Signals{}
	}
	l := &Loop{
		table:      table,
		source:     source,
		supervisor: sup,
		signals:    signals,
		interval:   interval,
		logger:     logger.With().Str("component", "daemon").Logger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.manager = watchmgr.New(logger)
	l.tracker = stability.New(l.sizeFunc, logger)
	l.dispatcher = dispatch.New(l.manager, l, l.tracker, logger)
	return l
}

// Execute queues a job for the spawn step of the current tick.
func (l *Loop) Execute(job supervisor.Job) {
	l.queue = append(l.queue, job)
}

// Reload re-reads the watch list and reconciles the watch table with it.
func (l *Loop) Reload() {
	l.logger.Info().Msg("Loading configuration")
	l.manager.BeginReload()
	for _, spec := range l.source.Load() {
		l.manager.Stage(spec)
	}
	l.manager.CommitReload(l.table)
	l.logger.Info().Int("watches", l.manager.Len()).Msg("Configuration loaded")
}

// Tick runs one iteration of work: reap, advance countdowns, read and
// dispatch events, promote stable files and spawn everything queued.
// Only a closed watch table is reported as an error.
func (l *Loop) Tick() error {
	// Collect finished children first so the registry stays small
	l.supervisor.Reap()

	// The poll timeout below is also the countdown step
	l.tracker.Tick(l.interval)

	// Wait for events, at most one interval
	events, err := l.table.Read(l.interval)
	if err != nil {
		if errors.Is(err, watchtable.ErrClosed) {
			return fmt.Errorf("reading events: %w", err)
		}
		l.logger.Warn().Err(err).Msg("Failed to read events")
	}
	// Immediate commands land in the queue, deferred ones in the tracker
	for _, ev := range events {
		l.dispatcher.Dispatch(ev)
	}

	// Files that stopped growing join the queue
	for _, c := range l.tracker.Evaluate() {
		l.Execute(supervisor.Job{Path: c.Path, Command: c.Command})
	}

	// Spawn everything queued this tick
	queue := l.queue
	l.queue = nil
	for _, job := range queue {
		// failures are logged by the supervisor and never retried
		_ = l.supervisor.Spawn(job)
	}
	return nil
}

// ShutdownRequested reports whether the loop should stop.
func (l *Loop) ShutdownRequested() bool {
	return l.signals.StopRequested()
}

// Run loads the configuration and loops until a stop is requested or ctx
// is cancelled. The watch table is closed on return; children keep
// running.
func (l *Loop) Run(ctx context.Context) error {
	l.Reload()
	l.logger.Info().Dur("pollInterval", l.interval).Msg("Watching for events")

	for {
		if ctx.Err() != nil {
			l.signals.RequestStop()
		}
		if l.ShutdownRequested() {
			return l.shutdown()
		}
		if l.signals.takeReload() {
			l.Reload()
			continue
		}
		if err := l.Tick(); err != nil {
			return errors.Join(err, l.shutdown())
		}
	}
}

func (l *Loop) shutdown() error {
	l.logger.Info().
		Int("runningChildren", l.supervisor.Len()).
		Int("pendingChecks", l.tracker.Len()).
		Msg("Stopping, running children are left alone")
	if err := l.table.Close(); err != nil {
		return fmt.Errorf("closing watch table: %w", err)
	}
	return nil
}

// Watches returns the active specs ordered by handle.
func (l *Loop) Watches() []watchspec.Spec {
	return l.manager.Specs()
}

// PendingChecks returns the files still waiting to stabilize.
func (l *Loop) PendingChecks() []stability.Check {
	return l.tracker.Pending()
}
