package daemon

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Signals carries the two requests the outside world can make of a running
// loop. The flags are set asynchronously and cleared only by the loop.
type Signals struct {
	stop   atomic.Bool
	reload atomic.Bool
}

// RequestStop asks the loop to stop before its next iteration.
func (s *Signals) RequestStop() {
	s.stop.Store(true)
}

// RequestReload asks the loop to re-read its configuration.
func (s *Signals) RequestReload() {
	s.reload.Store(true)
}

// StopRequested reports whether a stop was requested.
func (s *Signals) StopRequested() bool {
	return s.stop.Load()
}

// takeReload clears the reload flag and reports whether it was set.
func (s *Signals) takeReload() bool {
	return s.reload.Swap(false)
}

// Notify routes OS signals to the flags until ctx is done or the returned
// function is called.
func (s *Signals) Notify(ctx context.Context, logger zerolog.Logger) func() {
	ch := make(chan os.Signal, 4)
	signal.Notify(ch, append(append([]os.Signal{}, stopSignals...), reloadSignals...)...)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-ch:
				if isReloadSignal(sig) {
					logger.Info().Str("signal", sig.String()).Msg("Reload requested")
					s.RequestReload()
					continue
				}
				logger.Info().Str("signal", sig.String()).Msg("Shutdown requested")
				s.RequestStop()
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}

func isReloadSignal(sig os.Signal) bool {
	for _, r := range reloadSignals {
		if sig == r {
			return true
		}
	}
	return false
}
