// Package watchtable is the OS watch table: it installs and removes
// directory watches and reads raw change notifications.
//
// Each Add returns its own Handle even when several watches share a
// directory. The backend keeps one kernel watch per directory carrying the
// union of the masks and fans every notification out to the handles whose
// mask asked for it.
package watchtable

import (
	"errors"
	"fmt"
	"time"

	"github.com/your-org/watchexecd/internal/watchspec"
)

// Backend names accepted by Open
const (
	BackendAuto     = "auto"
	BackendInotify  = "inotify"
	BackendFsnotify = "fsnotify"
)

var (
	ErrUnknownHandle = errors.New("unknown watch handle")
	ErrClosed        = errors.New("watch table closed")
)

// Handle identifies one installed watch. Handles are never reused.
type Handle uint64

// Event is a raw change notification.
type Event struct {
	Handle Handle
	// Name is relative to the watched directory; empty when the event is
	// about the directory itself.
	Name  string
	Mask  watchspec.Mask
	IsDir bool
}

// Table is the set of OS watches owned by the daemon.
type Table interface {
	Add(path string, mask watchspec.Mask) (Handle, error)
	Remove(h Handle) error
	// Read waits at most timeout for notifications. A timeout with nothing
	// to report returns no events and no error.
	Read(timeout time.Duration) ([]Event, error)
	Close() error
}

type watchEntry struct {
	path string
	mask watchspec.Mask
}

// registry maps handles to directories. It is not safe for concurrent use.
type registry struct {
	next    Handle
	handles map[Handle]watchEntry
	byPath  map[string][]Handle
}

func newRegistry() *registry {
	return &registry{
		handles: make(map[Handle]watchEntry),
		byPath:  make(map[string][]Handle),
	}
}

func (r *registry) add(path string, mask watchspec.Mask) Handle {
	r.next++
	h := r.next
	r.handles[h] = watchEntry{path: path, mask: mask}
	r.byPath[path] = append(r.byPath[path], h)
	return h
}

func (r *registry) remove(h Handle) (string, error) {
	entry, ok := r.handles[h]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	delete(r.handles, h)

	kept := r.byPath[entry.path][:0]
	for _, other := range r.byPath[entry.path] {
		if other != h {
			kept = append(kept, other)
		}
	}
	if len(kept) == 0 {
		delete(r.byPath, entry.path)
	} else {
		r.byPath[entry.path] = kept
	}
	return entry.path, nil
}

// union returns the combined mask of every handle on path, flags included
func (r *registry) union(path string) watchspec.Mask {
	var m watchspec.Mask
	for _, h := range r.byPath[path] {
		m |= r.handles[h].mask
	}
	return m
}

func (r *registry) watching(path string) bool {
	return len(r.byPath[path]) > 0
}

// fanout appends one Event per interested handle. Oneshot handles that
// received an event are returned as spent so the caller can remove them.
func (r *registry) fanout(path, name string, mask watchspec.Mask, isDir bool, out []Event) ([]Event, []Handle) {
	var spent []Handle
	for _, h := range r.byPath[path] {
		want := r.handles[h].mask
		hit := want.Events() & mask
		if hit == 0 {
			continue
		}
		out = append(out, Event{Handle: h, Name: name, Mask: hit, IsDir: isDir})
		if want.Has(watchspec.Oneshot) {
			spent = append(spent, h)
		}
	}
	return out, spent
}

// kernelMask strips the options the table implements itself.
func kernelMask(m watchspec.Mask) watchspec.Mask {
	return m &^ (watchspec.MaskAdd | watchspec.Oneshot)
}
