package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_PanicRecovery(t *testing.T) {
	t.Parallel()

	// An HCL syntax error is guaranteed to panic during app.NewApp.
	invalidHCL := `
report {
  start = 100
// Missing closing brace here
`
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "summary.hcl")
	require.NoError(t, os.WriteFile(filePath, []byte(invalidHCL), 0o600))

	out := &bytes.Buffer{}
	err := run(out, []string{filePath})

	require.Error(t, err, "run() should have returned an error after recovering from a panic")
	require.Contains(t, err.Error(), "application startup panicked")
	require.Contains(t, err.Error(), "failed to parse")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(out, []string{"-h"})

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(out, []string{"--this-is-not-a-valid-flag"})

	require.Error(t, err)
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}

func TestRun_EndToEnd(t *testing.T) {
	t.Parallel()

	configHCL := `
report {
  title  = "X1 Summary"
  start  = 100
  end    = 200
  output = "OUTDIR"
}

tab "Overview" {
  entry "1" {
    definition = "timeseries X1:TEST-CHANNEL"
  }
}
`
	tempDir := t.TempDir()
	outDir := filepath.Join(tempDir, "public_html")
	hcl := []byte(configHCL)
	hcl = bytes.ReplaceAll(hcl, []byte("OUTDIR"), []byte(outDir))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "summary.hcl"), hcl, 0o600))

	out := &bytes.Buffer{}
	err := run(out, []string{"--log-level", "error", filepath.Join(tempDir, "summary.hcl")})
	require.NoError(t, err)

	// Without a data service the run still produces artifacts and pages.
	entries, err := os.ReadDir(filepath.Join(outDir, "plots"))
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	_, err = os.Stat(filepath.Join(outDir, "overview", "index.html"))
	require.NoError(t, err)
}
