package dispatch

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/watchexecd/internal/stability"
	"github.com/your-org/watchexecd/internal/supervisor"
	"github.com/your-org/watchexecd/internal/watchspec"
	"github.com/your-org/watchexecd/internal/watchtable"
)

type specTable map[watchtable.Handle]watchspec.Spec

func (s specTable) Resolve(h watchtable.Handle) (watchspec.Spec, bool) {
	spec, ok := s[h]
	return spec, ok
}

type recorder struct {
	jobs   []supervisor.Job
	checks []stability.Check
}

func (r *recorder) Execute(job supervisor.Job) { r.jobs = append(r.jobs, job) }
func (r *recorder) Track(check stability.Check) { r.checks = append(r.checks, check) }

func newDispatcher(specs specTable) (*Dispatcher, *recorder) {
	r := &recorder{}
	return New(specs, r, r, zerolog.Nop()), r
}

func TestRender(t *testing.T) {
	assert.Equal(t, "echo /a/b c.txt $", Render("echo $@ $# $$", "/a/b", "c.txt"))
	assert.Equal(t, "no placeholders", Render("no placeholders", "/a", "b"))
	assert.Equal(t, "/a/b/c /a/b/c", Render("$@/$# $@/$#", "/a/b", "c"))
}

func TestEscape(t *testing.T) {
	assert.Equal(t, "plain.txt", Escape("plain.txt"))
	assert.Equal(t, "'my file.txt'", Escape("my file.txt"))
	assert.Equal(t, "''", Escape(""))
	assert.Equal(t, `'it'"'"'s'`, Escape("it's"))
}

func TestDispatch_ImmediateCommand(t *testing.T) {
	d, r := newDispatcher(specTable{1: {
		Path:    "/tmp/in",
		Mask:    watchspec.CloseWrite,
		Command: "mv $@/$# $@/done/$#",
	}})

	out := d.Dispatch(watchtable.Event{Handle: 1, Name: "x.dat", Mask: watchspec.CloseWrite})
	assert.Equal(t, Immediate, out)
	require.Len(t, r.jobs, 1)
	assert.Equal(t, supervisor.Job{Path: "/tmp/in/x.dat", Command: "mv /tmp/in/x.dat /tmp/in/done/x.dat"}, r.jobs[0])
	assert.Empty(t, r.checks)
}

func TestDispatch_FileMatchFilters(t *testing.T) {
	d, r := newDispatcher(specTable{1: {
		Path:      "/photos",
		Mask:      watchspec.Create,
		Command:   "convert $#",
		FileMatch: "*.jpg",
	}})

	assert.Equal(t, Filtered, d.Dispatch(watchtable.Event{Handle: 1, Name: "photo.png", Mask: watchspec.Create}))
	assert.Empty(t, r.jobs)

	assert.Equal(t, Immediate, d.Dispatch(watchtable.Event{Handle: 1, Name: "photo.jpg", Mask: watchspec.Create}))
	require.Len(t, r.jobs, 1)
	assert.Equal(t, "convert photo.jpg", r.jobs[0].Command)
}

func TestDispatch_FileMatchUsesEscapedName(t *testing.T) {
	d, r := newDispatcher(specTable{1: {
		Path:      "/in",
		Mask:      watchspec.Create,
		Command:   "cat $#",
		FileMatch: "*.txt",
	}})

	// the quoted form ends with a quote, not ".txt"
	assert.Equal(t, Filtered, d.Dispatch(watchtable.Event{Handle: 1, Name: "my file.txt"}))
	assert.Equal(t, Immediate, d.Dispatch(watchtable.Event{Handle: 1, Name: "file.txt"}))
	assert.Len(t, r.jobs, 1)
}

func TestDispatch_EscapesNames(t *testing.T) {
	d, r := newDispatcher(specTable{1: {
		Path:    "/data dir",
		Mask:    watchspec.CloseWrite,
		Command: "process $@ $#",
	}})

	d.Dispatch(watchtable.Event{Handle: 1, Name: "my file.txt"})
	require.Len(t, r.jobs, 1)
	assert.Equal(t, "process '/data dir' 'my file.txt'", r.jobs[0].Command)
	assert.Equal(t, "/data dir/my file.txt", r.jobs[0].Path)
}

func TestDispatch_DeferredWhenIntervalSet(t *testing.T) {
	d, r := newDispatcher(specTable{1: {
		Path:          "/upload",
		Mask:          watchspec.Create,
		Command:       "ingest $#",
		CheckInterval: 2 * time.Second,
	}})

	assert.Equal(t, Deferred, d.Dispatch(watchtable.Event{Handle: 1, Name: "big file.iso"}))
	assert.Empty(t, r.jobs)
	require.Len(t, r.checks, 1)

	c := r.checks[0]
	assert.Equal(t, "/upload/big file.iso", c.Path)
	assert.Equal(t, "ingest 'big file.iso'", c.Command)
	assert.Equal(t, int64(0), c.Size)
	assert.Equal(t, 2*time.Second, c.Remaining)
	assert.Equal(t, 2*time.Second, c.Interval)
}

func TestDispatch_UnknownHandle(t *testing.T) {
	d, r := newDispatcher(specTable{})
	assert.Equal(t, Ignored, d.Dispatch(watchtable.Event{Handle: 9, Name: "a"}))
	assert.Empty(t, r.jobs)
	assert.Empty(t, r.checks)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "deferred", Deferred.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}
