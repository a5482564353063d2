//go:build linux

package watchtable

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unsafe"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/your-org/watchexecd/internal/watchspec"
)

// room for a few hundred events with maximum-length names
const inotifyBufferSize = 64 * (unix.SizeofInotifyEvent + unix.NAME_MAX + 1)

// inotifyTable keys kernel state by watch descriptor. The kernel hands out
// one descriptor per inode, so every spelling of a directory (trailing
// slash, symlink, relative path) lands on the same registry key.
type inotifyTable struct {
	fd      int
	closed  bool
	reg     *registry
	handles map[Handle]int // handle -> wd
	paths   map[int]string // live wd -> path last used to add it
	buf     []byte
	logger  zerolog.Logger
}

// NewInotify opens a non-blocking inotify instance.
func NewInotify(logger zerolog.Logger) (Table, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize inotify: %w", err)
	}
	return &inotifyTable{
		fd:      fd,
		reg:     newRegistry(),
		handles: make(map[Handle]int),
		paths:   make(map[int]string),
		buf:     make([]byte, inotifyBufferSize),
		logger:  logger.With().Str("component", "watchtable").Str("backend", BackendInotify).Logger(),
	}, nil
}

func wdKey(wd int) string {
	return strconv.Itoa(wd)
}

func (t *inotifyTable) Add(path string, mask watchspec.Mask) (Handle, error) {
	if t.closed {
		return 0, ErrClosed
	}

	// IN_MASK_ADD merges into whatever the descriptor already carries, so
	// other handles on the same inode keep their events
	wd, err := unix.InotifyAddWatch(t.fd, path, uint32(kernelMask(mask))|unix.IN_MASK_ADD)
	if err != nil {
		return 0, fmt.Errorf("inotify_add_watch %s: %w", path, err)
	}
	t.paths[wd] = path

	h := t.reg.add(wdKey(wd), mask)
	t.handles[h] = wd
	t.logger.Debug().
		Uint64("handle", uint64(h)).
		Int("wd", wd).
		Str("path", path).
		Str("mask", kernelMask(t.reg.union(wdKey(wd))).String()).
		Msg("Watch added")
	return h, nil
}

func (t *inotifyTable) Remove(h Handle) error {
	if t.closed {
		return ErrClosed
	}
	key, err := t.reg.remove(h)
	if err != nil {
		return err
	}
	wd := t.handles[h]
	delete(t.handles, h)

	path, live := t.paths[wd]
	if !live {
		// kernel already dropped it (directory deleted or unmounted)
		return nil
	}

	// other handles still share the descriptor: shrink it to their union
	if t.reg.watching(key) {
		remaining := kernelMask(t.reg.union(key))
		got, err := unix.InotifyAddWatch(t.fd, path, uint32(remaining))
		if err != nil {
			return fmt.Errorf("inotify_add_watch %s: %w", path, err)
		}
		if got != wd {
			t.logger.Warn().Str("path", path).Int("wd", wd).Int("newWd", got).Msg("Directory was replaced while watched")
		}
		return nil
	}

	// last handle on the descriptor
	delete(t.paths, wd)
	if _, err := unix.InotifyRmWatch(t.fd, uint32(wd)); err != nil && !errors.Is(err, unix.EINVAL) {
		return fmt.Errorf("inotify_rm_watch %s: %w", path, err)
	}
	return nil
}

func (t *inotifyTable) Read(timeout time.Duration) ([]Event, error) {
	if t.closed {
		return nil, ErrClosed
	}
	fds := []unix.PollFd{{Fd: int32(t.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(timeout.Milliseconds()))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil, nil
		}
		return nil, fmt.Errorf("poll inotify: %w", err)
	}
	if n == 0 {
		return nil, nil
	}

	n, err = unix.Read(t.fd, t.buf)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return nil, nil
		}
		return nil, fmt.Errorf("read inotify: %w", err)
	}
	return t.parse(t.buf[:n]), nil
}

func (t *inotifyTable) parse(buf []byte) []Event {
	var events []Event
	offset := 0
	for offset+unix.SizeofInotifyEvent <= len(buf) {
		// fixed header followed by a NUL-padded name of raw.Len bytes
		raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
		start := offset + unix.SizeofInotifyEvent
		end := start + int(raw.Len)
		if end > len(buf) {
			t.logger.Warn().Int("offset", offset).Msg("Truncated inotify event")
			break
		}
		name := strings.TrimRight(string(buf[start:end]), "\x00")
		offset = end

		// overflow carries wd -1 and no name
		if raw.Mask&unix.IN_Q_OVERFLOW != 0 {
			t.logger.Warn().Msg("Inotify queue overflowed, some events were lost")
			continue
		}
		wd := int(raw.Wd)
		path, ok := t.paths[wd]
		if !ok {
			continue
		}
		// the kernel removed the watch on its own; handles stay registered
		// until the manager removes them on the next reload
		if raw.Mask&unix.IN_IGNORED != 0 {
			t.logger.Warn().Str("path", path).Msg("Kernel dropped watch")
			delete(t.paths, wd)
			continue
		}

		// fan out to every handle on this descriptor, then retire spent oneshots
		var spent []Handle
		mask := watchspec.Mask(raw.Mask).Events()
		events, spent = t.reg.fanout(wdKey(wd), name, mask, raw.Mask&unix.IN_ISDIR != 0, events)
		for _, h := range spent {
			if err := t.Remove(h); err != nil {
				t.logger.Warn().Err(err).Uint64("handle", uint64(h)).Msg("Failed to remove oneshot watch")
			}
		}
	}
	return events
}

func (t *inotifyTable) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	return unix.Close(t.fd)
}
