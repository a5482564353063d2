//go:build !linux

package watchtable

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Open creates the table for the named backend. Only fsnotify is available
// off Linux.
func Open(backend string, logger zerolog.Logger) (Table, error) {
	switch backend {
	case "", BackendAuto, BackendFsnotify:
		return NewFsnotify(logger)
	case BackendInotify:
		return nil, fmt.Errorf("watch backend %q is only available on linux", backend)
	default:
		return nil, fmt.Errorf("unknown watch backend %q", backend)
	}
}
