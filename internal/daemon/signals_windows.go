//go:build windows

package daemon

import (
	"os"
	"syscall"
)

// Windows has no reload signal; reloads come only from RequestReload.
var (
	stopSignals   = []os.Signal{os.Interrupt, syscall.SIGTERM}
	reloadSignals []os.Signal
)
