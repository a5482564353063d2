//go:build linux

package watchtable

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Open creates the table for the named backend. "auto" means inotify.
func Open(backend string, logger zerolog.Logger) (Table, error) {
	switch backend {
	case "", BackendAuto, BackendInotify:
		return NewInotify(logger)
	case BackendFsnotify:
		return NewFsnotify(logger)
	default:
		return nil, fmt.Errorf("unknown watch backend %q", backend)
	}
}
