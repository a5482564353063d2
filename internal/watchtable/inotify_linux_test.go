//go:build linux

package watchtable

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/watchexecd/internal/watchspec"
)

func TestInotifyTable_CloseWrite(t *testing.T) {
	dir := t.TempDir()
	table, err := NewInotify(zerolog.Nop())
	require.NoError(t, err)
	defer table.Close()

	h, err := table.Add(dir, watchspec.CloseWrite)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.dat"), []byte("payload"), 0644))
	ev := readUntil(t, table, "x.dat", watchspec.CloseWrite)
	assert.Equal(t, h, ev.Handle)
	assert.False(t, ev.IsDir)
}

func TestInotifyTable_SharedDirectory(t *testing.T) {
	dir := t.TempDir()
	table, err := NewInotify(zerolog.Nop())
	require.NoError(t, err)
	defer table.Close()

	create, err := table.Add(dir, watchspec.Create)
	require.NoError(t, err)
	closeWrite, err := table.Add(dir, watchspec.CloseWrite)
	require.NoError(t, err)
	assert.NotEqual(t, create, closeWrite)

	// dropping one handle keeps the other alive on the same kernel watch
	require.NoError(t, table.Remove(create))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "y.dat"), []byte("payload"), 0644))
	ev := readUntil(t, table, "y.dat", watchspec.CloseWrite)
	assert.Equal(t, closeWrite, ev.Handle)
}

func TestInotifyTable_AddMissingDirectory(t *testing.T) {
	table, err := NewInotify(zerolog.Nop())
	require.NoError(t, err)
	defer table.Close()

	_, err = table.Add(filepath.Join(t.TempDir(), "gone"), watchspec.Create)
	assert.Error(t, err)
}

func TestInotifyTable_ClosedTable(t *testing.T) {
	table, err := NewInotify(zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, table.Close())

	_, err = table.Read(0)
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, table.Close())
}

// collect gathers every event for name until quiet passes without one.
func collect(t *testing.T, table Table, name string, quiet time.Duration) []Event {
	t.Helper()
	var got []Event
	for {
		events, err := table.Read(quiet)
		require.NoError(t, err)
		if len(events) == 0 {
			return got
		}
		for _, ev := range events {
			if ev.Name == name {
				got = append(got, ev)
			}
		}
	}
}

func TestInotifyTable_SameDirectoryDifferentSpelling(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(t.TempDir(), "link")
	require.NoError(t, os.Symlink(dir, link))

	for name, alias := range map[string]string{
		"trailing slash": dir + "/",
		"dot segment":    filepath.Join(dir, ".") + "/.",
		"symlink":        link,
	} {
		t.Run(name, func(t *testing.T) {
			table, err := NewInotify(zerolog.Nop())
			require.NoError(t, err)
			defer table.Close()

			create, err := table.Add(dir, watchspec.Create)
			require.NoError(t, err)
			closeWrite, err := table.Add(alias, watchspec.CloseWrite)
			require.NoError(t, err)

			// adding the alias must not replace the first handle's events
			file := "a-" + strings.ReplaceAll(name, " ", "-")
			require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte("x"), 0644))
			byHandle := map[Handle]watchspec.Mask{}
			for _, ev := range collect(t, table, file, 300*time.Millisecond) {
				byHandle[ev.Handle] |= ev.Mask
			}
			assert.Equal(t, watchspec.Create, byHandle[create])
			assert.Equal(t, watchspec.CloseWrite, byHandle[closeWrite])

			// removing one spelling leaves the other alive
			require.NoError(t, table.Remove(create))
			file = "b-" + strings.ReplaceAll(name, " ", "-")
			require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte("x"), 0644))
			ev := readUntil(t, table, file, watchspec.CloseWrite)
			assert.Equal(t, closeWrite, ev.Handle)
		})
	}
}

func TestInotifyTable_RemoveLastHandleStopsEvents(t *testing.T) {
	dir := t.TempDir()
	table, err := NewInotify(zerolog.Nop())
	require.NoError(t, err)
	defer table.Close()

	a, err := table.Add(dir, watchspec.CloseWrite)
	require.NoError(t, err)
	b, err := table.Add(dir+"/", watchspec.CloseWrite)
	require.NoError(t, err)
	require.NoError(t, table.Remove(a))
	require.NoError(t, table.Remove(b))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "z.dat"), []byte("x"), 0644))
	assert.Empty(t, collect(t, table, "z.dat", 200*time.Millisecond))
	assert.ErrorIs(t, table.Remove(a), ErrUnknownHandle)
}
