package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/gridci/internal/cli"
)

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	// Arrange
	var out bytes.Buffer

	// Act
	err := run(&out, []string{"-h"})

	// Assert
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Usage:")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	err := run(&out, []string{"--definitely-not-a-flag"})

	require.Error(t, err)
	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

func TestRun_PanicRecovery(t *testing.T) {
	t.Parallel()

	// Arrange: a workflow file that cannot be parsed forces the app
	// constructor to panic, which run must turn into an error.
	workflowDir := t.TempDir()
	modulesDir := t.TempDir()
	brokenPath := filepath.Join(workflowDir, "broken.hcl")
	require.NoError(t, os.WriteFile(brokenPath, []byte(`workflow "x" {`), 0o644))

	var out bytes.Buffer

	// Act
	err := run(&out, []string{"--modules-path", modulesDir, workflowDir})

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "application startup panicked")
	assert.Contains(t, err.Error(), "failed to parse")
}
