package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_PanicRecovery(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// A config file with a syntax error is guaranteed to panic the loading
	// phase inside app.NewApp().
	invalidHCL := `
		object_id  = "o00000000000000aa"
		worker_num =
	`
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "worker.hcl")
	err := os.WriteFile(filePath, []byte(invalidHCL), 0600)
	require.NoError(t, err, "failed to set up test file")

	args := []string{"--config", filePath, "graph.o00000000000000aa", "0"}
	out := &bytes.Buffer{}

	// --- Act ---
	// The run function should recover the panic and return it as an error.
	runErr := run(out, args)

	// --- Assert ---
	require.Error(t, runErr, "run() should have returned an error after recovering from a panic")

	errStr := runErr.Error()
	require.True(t, strings.Contains(errStr, "application startup panicked"), "The error message should indicate that a panic was recovered.")
	require.True(t, strings.Contains(errStr, "failed to parse"), "The error message should contain the underlying reason for the panic.")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// The "-h" (help) flag should cause cli.Parse to return `shouldExit=true`.
	args := []string{"-h"}
	out := &bytes.Buffer{}

	// --- Act ---
	// The run function should see `shouldExit=true` and return a nil error.
	err := run(out, args)

	// --- Assert ---
	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// Providing an unknown flag will cause cli.Parse to return an error.
	args := []string{"--this-is-not-a-valid-flag"}
	out := &bytes.Buffer{}

	// --- Act ---
	// The run function should propagate the error from cli.Parse.
	err := run(out, args)

	// --- Assert ---
	require.Error(t, err, "run() should return an error when argument parsing fails")
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}

func TestRun_ExecutesPlanEndToEnd(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	tempDir := t.TempDir()
	vfilePath := filepath.Join(tempDir, "base.v")
	require.NoError(t, os.WriteFile(vfilePath, []byte("v1\nv2\n"), 0600))

	planDir := filepath.Join(tempDir, "plans")
	require.NoError(t, os.MkdirAll(planDir, 0755))
	planHCL := fmt.Sprintf(`
		op "load_graph" "cities" {
		  params = { vfile = %q }
		}
	`, vfilePath)
	require.NoError(t, os.WriteFile(filepath.Join(planDir, "main.hcl"), []byte(planHCL), 0600))

	configHCL := fmt.Sprintf(`
		object_id  = "o00000000000000aa"
		worker_num = 1
		plan_path  = %q
	`, planDir)
	configPath := filepath.Join(tempDir, "worker.hcl")
	require.NoError(t, os.WriteFile(configPath, []byte(configHCL), 0600))

	args := []string{"--config", configPath, "graph.o00000000000000aa", "0"}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(out, args)

	// --- Assert ---
	require.NoError(t, err)
	require.Contains(t, out.String(), "Execution finished.")
}
