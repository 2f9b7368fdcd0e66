package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspaceLifecycle(t *testing.T) {
	t.Parallel()

	ws, err := CreateWorkspace(context.Background(), &Input{Prefix: "gridci-test-"})
	require.NoError(t, err)
	require.NotNil(t, ws)

	info, err := os.Stat(ws.Dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Contains(t, filepath.Base(ws.Dir), "gridci-test-")

	// Steps can write into the workspace.
	require.NoError(t, os.WriteFile(filepath.Join(ws.Dir, "out.txt"), []byte("x"), 0o644))

	require.NoError(t, DestroyWorkspace(ws))
	_, err = os.Stat(ws.Dir)
	assert.True(t, os.IsNotExist(err))
}
