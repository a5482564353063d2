// Package dispatch turns raw watch notifications into commands, either run
// straight away or parked until the file stops growing.
package dispatch

import (
	"path/filepath"

	"github.com/gobwas/glob"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/your-org/watchexecd/internal/stability"
	"github.com/your-org/watchexecd/internal/supervisor"
	"github.com/your-org/watchexecd/internal/watchspec"
	"github.com/your-org/watchexecd/internal/watchtable"
)

const patternCacheSize = 256

// Resolver maps a watch handle back to its spec.
type Resolver interface {
	Resolve(h watchtable.Handle) (watchspec.Spec, bool)
}

// Executor accepts commands that should run now.
type Executor interface {
	Execute(job supervisor.Job)
}

// Stabilizer accepts commands that wait for their file to settle.
type Stabilizer interface {
	Track(check stability.Check)
}

// Outcome says what Dispatch did with an event.
type Outcome int

const (
	Ignored Outcome = iota
	Filtered
	Immediate
	Deferred
)

func (o Outcome) String() string {
	switch o {
	case Ignored:
		return "ignored"
	case Filtered:
		return "filtered"
	case Immediate:
		return "immediate"
	case Deferred:
		return "deferred"
	default:
		return "unknown"
	}
}

// Dispatcher routes events for the daemon loop.
type Dispatcher struct {
	resolver Resolver
	executor Executor
	tracker  Stabilizer
	patterns *lru.Cache[string, glob.Glob]
	logger   zerolog.Logger
}

// New creates a dispatcher.
func New(resolver Resolver, executor Executor, tracker Stabilizer, logger zerolog.Logger) *Dispatcher {
	patterns, _ := lru.New[string, glob.Glob](patternCacheSize)
	return &Dispatcher{
		resolver: resolver,
		executor: executor,
		tracker:  tracker,
		patterns: patterns,
		logger:   logger.With().Str("component", "dispatch").Logger(),
	}
}

// Dispatch handles one event.
func (d *Dispatcher) Dispatch(ev watchtable.Event) Outcome {
	spec, ok := d.resolver.Resolve(ev.Handle)
	if !ok {
		d.logger.Debug().Uint64("handle", uint64(ev.Handle)).Msg("Event for unknown watch, ignoring")
		return Ignored
	}

	escapedPath := Escape(spec.Path)
	escapedFile := Escape(ev.Name)

	d.logger.Info().
		Str("path", escapedPath).
		Str("file", escapedFile).
		Str("event", ev.Mask.String()).
		Msg("Event found")

	if spec.FileMatch != "" && !d.matches(spec.FileMatch, escapedFile) {
		d.logger.Info().
			Str("file", escapedFile).
			Str("fileMatch", spec.FileMatch).
			Msg("File does not match, event discarded")
		return Filtered
	}

	command := Render(spec.Command, escapedPath, escapedFile)
	fullPath := filepath.Join(spec.Path, ev.Name)

	if spec.Immediate() {
		d.executor.Execute(supervisor.Job{Path: fullPath, Command: command})
		return Immediate
	}
	d.tracker.Track(stability.NewCheck(fullPath, command, spec.CheckInterval))
	return Deferred
}

// matches compiles pattern on first use. An uncompilable pattern matches
// nothing.
func (d *Dispatcher) matches(pattern, name string) bool {
	g, ok := d.patterns.Get(pattern)
	if !ok {
		compiled, err := glob.Compile(pattern)
		if err != nil {
			d.logger.Warn().Err(err).Str("fileMatch", pattern).Msg("Invalid file pattern")
			return false
		}
		d.patterns.Add(pattern, compiled)
		g = compiled
	}
	return g.Match(name)
}
