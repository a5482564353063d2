// Package stability defers commands until the file that triggered them
// stops changing size.
//
// This is a fixed-window debounce on byte length, not a content hash. A
// writer that pauses for a whole window without changing the length is
// taken as finished.
package stability

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Check is a file waiting for its size to settle.
type Check struct {
	Path      string
	Command   string
	Size      int64
	Remaining time.Duration
	Interval  time.Duration
}

// NewCheck creates a check whose first measurement is one interval away.
// The size starts at zero.
func NewCheck(path, command string, interval time.Duration) Check {
	return Check{
		Path:      path,
		Command:   command,
		Remaining: interval,
		Interval:  interval,
	}
}

// Due reports whether the countdown has expired.
func (c Check) Due() bool {
	return c.Remaining <= 0
}

// SizeFunc returns the current length of a file.
type SizeFunc func(path string) (int64, error)

// StatSize is the default SizeFunc.
func StatSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Tracker holds pending checks in arrival order.
type Tracker struct {
	checks []Check
	size   SizeFunc
	logger zerolog.Logger
}

// New creates a tracker. A nil size function means StatSize.
func New(size SizeFunc, logger zerolog.Logger) *Tracker {
	if size == nil {
		size = StatSize
	}
	return &Tracker{
		size:   size,
		logger: logger.With().Str("component", "stability").Logger(),
	}
}

// Track starts watching a file. A check for the same file and command that
// is already pending absorbs the new one; the pending countdown and last
// size are kept, not reset.
func (t *Tracker) Track(check Check) {
	for _, pending := range t.checks {
		if pending.Path == check.Path && pending.Command == check.Command {
			t.logger.Debug().Str("file", check.Path).Msg("File already awaiting stabilization")
			return
		}
	}
	t.logger.Info().
		Str("file", check.Path).
		Dur("interval", check.Interval).
		Msg("File queued for size check")
	t.checks = append(t.checks, check)
}

// Tick advances every countdown by elapsed.
func (t *Tracker) Tick(elapsed time.Duration) {
	for i := range t.checks {
		t.checks[i].Remaining -= elapsed
	}
}

// Evaluate measures every due check. Checks whose size did not change since
// the last measurement are removed and returned in arrival order; the
// others record the new size and restart their countdown.
func (t *Tracker) Evaluate() []Check {
	var stable []Check
	kept := t.checks[:0]
	for _, c := range t.checks {
		if !c.Due() {
			kept = append(kept, c)
			continue
		}

		size := t.measure(c.Path)
		t.logger.Debug().
			Str("file", c.Path).
			Int64("previous", c.Size).
			Int64("current", size).
			Msg("File checked")

		// Same length as one window ago: presumed complete
		if size == c.Size {
			t.logger.Info().Str("file", c.Path).Msg("File is now ready for execution")
			stable = append(stable, c)
			continue
		}
		// Still changing: remember the length and wait a full window again
		c.Size = size
		c.Remaining = c.Interval
		kept = append(kept, c)
	}
	// clear the tail so dropped checks do not linger in the backing array
	for i := len(kept); i < len(t.checks); i++ {
		t.checks[i] = Check{}
	}
	t.checks = kept
	return stable
}

// measure never fails: a missing or unreadable file counts as empty.
func (t *Tracker) measure(path string) int64 {
	size, err := t.size(path)
	if err != nil {
		t.logger.Warn().Err(err).Str("file", path).Msg("Unable to read file size, assuming 0")
		return 0
	}
	return size
}

// Len returns the number of pending checks.
func (t *Tracker) Len() int {
	return len(t.checks)
}

// Pending returns a copy of the pending checks.
func (t *Tracker) Pending() []Check {
	out := make([]Check, len(t.checks))
	copy(out, t.checks)
	return out
}
