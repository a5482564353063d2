// Package watchmgr reconciles the configured watch list against the OS
// watch table across reloads.
package watchmgr

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/your-org/watchexecd/internal/watchspec"
	"github.com/your-org/watchexecd/internal/watchtable"
)

// WatchTable is the part of the OS watch table the manager drives.
type WatchTable interface {
	Add(path string, mask watchspec.Mask) (watchtable.Handle, error)
	Remove(h watchtable.Handle) error
}

// Manager owns the mapping from watch handles to specs.
//
// A reload is a two-phase commit: BeginReload, one Stage per configured
// spec, then CommitReload. Specs that did not change keep their handle and
// are never torn down.
type Manager struct {
	current  map[watchtable.Handle]watchspec.Spec
	previous map[watchtable.Handle]watchspec.Spec
	staged   []watchspec.Spec
	logger   zerolog.Logger
}

// New creates an empty manager.
func New(logger zerolog.Logger) *Manager {
	return &Manager{
		current:  make(map[watchtable.Handle]watchspec.Spec),
		previous: make(map[watchtable.Handle]watchspec.Spec),
		logger:   logger.With().Str("component", "watchmgr").Logger(),
	}
}

// BeginReload moves every active watch aside and clears the staged list.
func (m *Manager) BeginReload() {
	m.previous = m.current
	m.current = make(map[watchtable.Handle]watchspec.Spec)
	m.staged = nil
}

// Stage records one spec found while re-reading configuration.
func (m *Manager) Stage(spec watchspec.Spec) {
	// Unchanged watch: carry its handle over untouched
	for _, h := range sortedHandles(m.previous) {
		if m.previous[h].Equal(spec) {
			m.logger.Info().Str("path", spec.Path).Uint64("handle", uint64(h)).Msg("Watch unchanged, keeping it")
			delete(m.previous, h)
			m.current[h] = spec
			return
		}
	}

	// Duplicate of something already kept or staged in this reload
	for h, active := range m.current {
		if active.Equal(spec) {
			m.logger.Warn().Str("path", spec.Path).Uint64("handle", uint64(h)).Msg("Duplicate watch entry ignored")
			return
		}
	}
	for _, pending := range m.staged {
		if pending.Equal(spec) {
			m.logger.Warn().Str("path", spec.Path).Msg("Duplicate watch entry ignored")
			return
		}
	}

	m.logger.Info().Str("path", spec.Path).Str("events", spec.Mask.String()).Msg("Watch staged")
	m.staged = append(m.staged, spec)
}

// CommitReload applies the staged changes to the table. Every removal runs
// before any addition. Table failures are logged and skipped.
func (m *Manager) CommitReload(table WatchTable) {
	// Whatever is left in previous was not staged again
	for _, h := range sortedHandles(m.previous) {
		spec := m.previous[h]
		if err := table.Remove(h); err != nil {
			m.logger.Warn().Err(err).Str("path", spec.Path).Uint64("handle", uint64(h)).Msg("Error while removing watch")
		} else {
			m.logger.Info().Str("path", spec.Path).Uint64("handle", uint64(h)).Msg("Watch removed")
		}
	}
	m.previous = make(map[watchtable.Handle]watchspec.Spec)

	// Install new and changed specs; a failed add just leaves it inactive
	for _, spec := range m.staged {
		h, err := table.Add(spec.Path, spec.Mask)
		if err != nil {
			m.logger.Warn().Err(err).Str("path", spec.Path).Msg("Error while adding watch")
			continue
		}
		m.current[h] = spec
		m.logger.Info().
			Str("path", spec.Path).
			Uint64("handle", uint64(h)).
			Str("events", spec.Mask.String()).
			Msg("Watch added")
	}
	m.staged = nil
}

// Resolve looks up the spec behind a handle. Unknown handles, such as
// stale events from a watch removed moments ago, report false.
func (m *Manager) Resolve(h watchtable.Handle) (watchspec.Spec, bool) {
	spec, ok := m.current[h]
	return spec, ok
}

// Len returns the number of active watches.
func (m *Manager) Len() int {
	return len(m.current)
}

// Specs returns the active specs ordered by handle.
func (m *Manager) Specs() []watchspec.Spec {
	out := make([]watchspec.Spec, 0, len(m.current))
	for _, h := range sortedHandles(m.current) {
		out = append(out, m.current[h])
	}
	return out
}

func sortedHandles(set map[watchtable.Handle]watchspec.Spec) []watchtable.Handle {
	handles := make([]watchtable.Handle, 0, len(set))
	for h := range set {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	return handles
}
