package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeWatchList(t *testing.T, content string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "watchexecd.json"), []byte(content), 0644))
	return root
}

func TestCheck_AllValid(t *testing.T) {
	watched := t.TempDir()
	root := writeWatchList(t, `[{"path": "`+watched+`", "events": ["CLOSE_WRITE"], "command": "mv $@/$# $@/done/$#", "check_interval": 2}]`)

	out, err := execute(t, "check", "--config-root", root)
	require.NoError(t, err)
	assert.Contains(t, out, "OK   ")
	assert.Contains(t, out, "CLOSE_WRITE")
	assert.Contains(t, out, "check_interval=2s")
	assert.Contains(t, out, "1 entries, 0 rejected")
}

func TestCheck_RejectionFails(t *testing.T) {
	root := writeWatchList(t, `[{"path": "/no/such/dir", "events": ["CREATE"], "command": "x"}]`)

	out, err := execute(t, "check", "--config-root", root)
	assert.Error(t, err)
	assert.Contains(t, out, "FAIL ")
	assert.Contains(t, out, "path does not exist")
}

func TestExport_YAML(t *testing.T) {
	watched := t.TempDir()
	root := writeWatchList(t, `[{"path": "`+watched+`", "events": ["IN_CREATE"], "command": "echo $#", "file_match": "*.jpg"}]`)

	out, err := execute(t, "export", "--config-root", root, "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "- command: echo $#")
	assert.Contains(t, out, "file_match: '*.jpg'")
	assert.Contains(t, out, "- CREATE")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "watchexecd dev"))

	out, err = execute(t, "version", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"version": "dev"`)
}

func TestStatus_NotRunning(t *testing.T) {
	out, err := execute(t, "status", "--pid-file", filepath.Join(t.TempDir(), "none.pid"))
	assert.Error(t, err)
	assert.Equal(t, "not running\n", out)
}

func TestInvalidSettings(t *testing.T) {
	_, err := execute(t, "check", "--backend", "kqueue")
	assert.Error(t, err)
}
