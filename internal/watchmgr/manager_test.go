package watchmgr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/watchexecd/internal/watchspec"
	"github.com/your-org/watchexecd/internal/watchtable"
)

// recordingTable is a WatchTable that logs every call in order.
type recordingTable struct {
	next    watchtable.Handle
	calls   []string
	failAdd map[string]bool
	failRm  map[watchtable.Handle]bool
}

func newRecordingTable() *recordingTable {
	return &recordingTable{failAdd: map[string]bool{}, failRm: map[watchtable.Handle]bool{}}
}

func (r *recordingTable) Add(path string, mask watchspec.Mask) (watchtable.Handle, error) {
	if r.failAdd[path] {
		r.calls = append(r.calls, "add-fail "+path)
		return 0, errors.New("permission denied")
	}
	r.next++
	r.calls = append(r.calls, fmt.Sprintf("add %s %d", path, r.next))
	return r.next, nil
}

func (r *recordingTable) Remove(h watchtable.Handle) error {
	r.calls = append(r.calls, fmt.Sprintf("rm %d", h))
	if r.failRm[h] {
		return errors.New("invalid argument")
	}
	return nil
}

func reload(m *Manager, table WatchTable, specs ...watchspec.Spec) {
	m.BeginReload()
	for _, s := range specs {
		m.Stage(s)
	}
	m.CommitReload(table)
}

var (
	specA = watchspec.Spec{Path: "/a", Mask: watchspec.CloseWrite, Command: "echo a"}
	specB = watchspec.Spec{Path: "/b", Mask: watchspec.Create, Command: "echo b"}
	specC = watchspec.Spec{Path: "/c", Mask: watchspec.Delete, Command: "echo c"}
)

func TestReload_PreservesUnchangedWatch(t *testing.T) {
	table := newRecordingTable()
	m := New(zerolog.Nop())

	reload(m, table, specA, specB)
	require.Equal(t, []string{"add /a 1", "add /b 2"}, table.calls)

	table.calls = nil
	reload(m, table, specA, specC)

	// A keeps handle 1: no remove/add pair for it
	assert.Equal(t, []string{"rm 2", "add /c 3"}, table.calls)
	spec, ok := m.Resolve(1)
	require.True(t, ok)
	assert.Equal(t, specA, spec)
}

func TestReload_RemovesStaleAddsNew(t *testing.T) {
	table := newRecordingTable()
	m := New(zerolog.Nop())

	reload(m, table, specA, specB)
	reload(m, table, specB, specC)

	assert.ElementsMatch(t, []watchspec.Spec{specB, specC}, m.Specs())
	_, ok := m.Resolve(1)
	assert.False(t, ok, "removed watch must not resolve")
	assert.Equal(t, 2, m.Len())
}

func TestReload_ChangedSpecIsReplaced(t *testing.T) {
	table := newRecordingTable()
	m := New(zerolog.Nop())
	reload(m, table, specA)

	changed := specA
	changed.FileMatch = "*.jpg"
	table.calls = nil
	reload(m, table, changed)

	// removal always precedes the addition for the same path
	assert.Equal(t, []string{"rm 1", "add /a 2"}, table.calls)
}

func TestReload_RemovalsBeforeAdditions(t *testing.T) {
	table := newRecordingTable()
	m := New(zerolog.Nop())
	reload(m, table, specA, specB)

	table.calls = nil
	reload(m, table, specC, watchspec.Spec{Path: "/d", Mask: watchspec.Create, Command: "x"})
	assert.Equal(t, []string{"rm 1", "rm 2", "add /c 3", "add /d 4"}, table.calls)
}

func TestReload_DuplicateEntriesShareOneWatch(t *testing.T) {
	table := newRecordingTable()
	m := New(zerolog.Nop())

	reload(m, table, specA, specA)
	assert.Equal(t, []string{"add /a 1"}, table.calls)

	table.calls = nil
	reload(m, table, specA, specA)
	assert.Empty(t, table.calls)
	assert.Equal(t, 1, m.Len())
}

func TestReload_TableFailuresAreSkipped(t *testing.T) {
	table := newRecordingTable()
	m := New(zerolog.Nop())
	reload(m, table, specA, specB)

	table.failRm[1] = true
	table.failAdd["/c"] = true
	reload(m, table, specC)

	assert.Equal(t, 0, m.Len())

	table.failAdd["/c"] = false
	reload(m, table, specC)
	assert.Equal(t, []watchspec.Spec{specC}, m.Specs())
}

func TestReload_EmptyConfigRemovesEverything(t *testing.T) {
	table := newRecordingTable()
	m := New(zerolog.Nop())
	reload(m, table, specA, specB)

	reload(m, table)
	assert.Equal(t, 0, m.Len())
}

func TestResolve_UnknownHandle(t *testing.T) {
	m := New(zerolog.Nop())
	_, ok := m.Resolve(42)
	assert.False(t, ok)
}
