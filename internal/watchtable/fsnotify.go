package watchtable

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/your-org/watchexecd/internal/watchspec"
)

// fsnotifyTable is the portable backend. fsnotify reports a smaller set of
// operations than inotify, so masks are approximated:
//
//	Create -> CREATE, MOVED_TO
//	Write  -> MODIFY, CLOSE_WRITE
//	Remove -> DELETE (DELETE_SELF on the watched directory)
//	Rename -> MOVED_FROM (MOVE_SELF on the watched directory)
//	Chmod  -> ATTRIB
type fsnotifyTable struct {
	watcher *fsnotify.Watcher
	closed  bool
	reg     *registry
	logger  zerolog.Logger
}

// NewFsnotify opens a table backed by fsnotify.
func NewFsnotify(logger zerolog.Logger) (Table, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &fsnotifyTable{
		watcher: watcher,
		reg:     newRegistry(),
		logger:  logger.With().Str("component", "watchtable").Str("backend", BackendFsnotify).Logger(),
	}, nil
}

func (t *fsnotifyTable) Add(path string, mask watchspec.Mask) (Handle, error) {
	if t.closed {
		return 0, ErrClosed
	}
	key := filepath.Clean(path)
	if !t.reg.watching(key) {
		if err := t.watcher.Add(key); err != nil {
			return 0, fmt.Errorf("failed to watch directory %s: %w", path, err)
		}
	}
	h := t.reg.add(key, mask)
	t.logger.Debug().
		Uint64("handle", uint64(h)).
		Str("path", key).
		Str("mask", mask.String()).
		Msg("Watch added")
	return h, nil
}

func (t *fsnotifyTable) Remove(h Handle) error {
	if t.closed {
		return ErrClosed
	}
	path, err := t.reg.remove(h)
	if err != nil {
		return err
	}
	if t.reg.watching(path) {
		return nil
	}
	if err := t.watcher.Remove(path); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
		return fmt.Errorf("failed to unwatch directory %s: %w", path, err)
	}
	return nil
}

func (t *fsnotifyTable) Read(timeout time.Duration) ([]Event, error) {
	if t.closed {
		return nil, ErrClosed
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var events []Event
	select {
	case ev, ok := <-t.watcher.Events:
		if !ok {
			return nil, ErrClosed
		}
		events = t.convert(ev, events)
	case err, ok := <-t.watcher.Errors:
		if !ok {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("fsnotify: %w", err)
	case <-timer.C:
		return nil, nil
	}

	// drain whatever else is already queued
	for {
		select {
		case ev, ok := <-t.watcher.Events:
			if !ok {
				return events, nil
			}
			events = t.convert(ev, events)
		default:
			return events, nil
		}
	}
}

func (t *fsnotifyTable) convert(ev fsnotify.Event, out []Event) []Event {
	name := filepath.Clean(ev.Name)

	dir, file, self := name, "", true
	if !t.reg.watching(name) {
		dir, file, self = filepath.Dir(name), filepath.Base(name), false
		if !t.reg.watching(dir) {
			return out
		}
	}

	mask := translateOp(ev.Op, self)
	if mask == 0 {
		return out
	}
	out, spent := t.reg.fanout(dir, file, mask, false, out)
	for _, h := range spent {
		if err := t.Remove(h); err != nil {
			t.logger.Warn().Err(err).Uint64("handle", uint64(h)).Msg("Failed to remove oneshot watch")
		}
	}
	return out
}

func translateOp(op fsnotify.Op, self bool) watchspec.Mask {
	var m watchspec.Mask
	if op.Has(fsnotify.Create) {
		m |= watchspec.Create | watchspec.MovedTo
	}
	if op.Has(fsnotify.Write) {
		m |= watchspec.Modify | watchspec.CloseWrite
	}
	if op.Has(fsnotify.Remove) {
		if self {
			m |= watchspec.DeleteSelf
		} else {
			m |= watchspec.Delete
		}
	}
	if op.Has(fsnotify.Rename) {
		if self {
			m |= watchspec.MoveSelf
		} else {
			m |= watchspec.MovedFrom
		}
	}
	if op.Has(fsnotify.Chmod) {
		m |= watchspec.Attrib
	}
	return m
}

func (t *fsnotifyTable) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	return t.watcher.Close()
}
