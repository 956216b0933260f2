package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.hcl")
	require.NoError(t, os.WriteFile(path, []byte(src), 0600), "failed to set up test file")
	return path
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
element "src" {
  class = "InfiniteSource"
`)
	out := &bytes.Buffer{}
	err := run(context.Background(), out, []string{path})
	require.Error(t, err, "run() should fail on a malformed configuration")
	require.Contains(t, err.Error(), "main.hcl")
}

func TestRun_RunsRouter(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
element "src" {
  class  = "InfiniteSource"
  config = "LIMIT 3, STOP true"
}
element "c" {
  class = "Counter"
}
element "sink" {
  class = "Discard"
}
connect {
  from = "src"
  to   = "c"
}
connect {
  from = "c"
  to   = "sink"
}
`)
	out := &bytes.Buffer{}
	err := run(context.Background(), out, []string{"-log-level", "error", "-threads", "2", "-h", "c.count", path})
	require.NoError(t, err)
	require.Contains(t, out.String(), "c.count:\n3\n")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(context.Background(), out, []string{"-help"})

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(context.Background(), out, []string{"--this-is-not-a-valid-flag"})

	require.Error(t, err, "run() should return an error when argument parsing fails")
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}
