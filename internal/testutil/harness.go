package testutil

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/gridci/internal/app"
	"github.com/vk/gridci/internal/hcl"
	"github.com/vk/gridci/internal/registry"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of a workflow test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	App       *app.App
}

// RunWorkflowTest boots the application against the provided HCL files and
// executes the workflow as a "push" to the default branch.
func RunWorkflowTest(t *testing.T, files map[string]string, modules ...registry.Module) *HarnessResult {
	t.Helper()
	return RunWorkflowTestWithEvent(context.Background(), t, files, "push", "refs/heads/main", modules...)
}

// RunWorkflowTestWithEvent boots the application against the provided HCL
// files and executes the workflow for a specific triggering event. File keys
// are paths relative to the temp root; keys under "modules/" become the
// modules path, everything else belongs to the workflow path.
func RunWorkflowTestWithEvent(ctx context.Context, t *testing.T, files map[string]string, event, ref string, modules ...registry.Module) *HarnessResult {
	t.Helper()

	tmpDir := t.TempDir()
	workflowDir := filepath.Join(tmpDir, "workflow")
	modulesDir := filepath.Join(tmpDir, "modules")
	require.NoError(t, os.Mkdir(workflowDir, 0o755))
	require.NoError(t, os.Mkdir(modulesDir, 0o755))

	for name, content := range files {
		filePath := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0o755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0o644))
	}

	appConfig := &app.Config{
		WorkflowPath: workflowDir,
		ModulesPath:  modulesDir,
		Event:        event,
		Ref:          ref,
		LogLevel:     "debug",
		LogFormat:    "text",
		WorkerCount:  4,
	}

	logBuffer := &SafeBuffer{}

	var testApp *app.App
	var panicErr any
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicErr = r
			}
		}()
		testApp = app.NewApp(logBuffer, appConfig, hcl.NewLoader(), modules...)
	}()

	if panicErr != nil {
		return &HarnessResult{
			LogOutput: logBuffer.String(),
			Err:       fmt.Errorf("application startup panicked | %v", panicErr),
		}
	}

	runErr := testApp.Run(ctx)

	return &HarnessResult{
		LogOutput: logBuffer.String(),
		Err:       runErr,
		App:       testApp,
	}
}
