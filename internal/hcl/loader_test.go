package hcl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

const validManifest = `
runner "shell" {
  lifecycle {
    on_run = "OnRunShell"
  }
  input "command" {
    type = string
  }
  input "shell" {
    type    = string
    default = "/bin/bash"
  }
  output "stdout" {
    type = string
  }
}
`

const validWorkflow = `
workflow "ci" {
  on = ["push", "pull_request"]
  env = {
    PACKAGE = "saged"
  }
  strategy {
    matrix {
      python = ["3.5", "3.6", "3.7", "3.8"]
    }
    max_parallel = 5
  }
}

step "shell" "lint" {
  arguments {
    command = "flake8 ."
  }
}
`

func TestLoad_AssemblesModel(t *testing.T) {
	t.Parallel()

	dir := writeFiles(t, map[string]string{
		"workflow/main.hcl":       validWorkflow,
		"modules/shell/shell.hcl": validManifest,
	})

	model, converter, err := NewLoader().Load(context.Background(), dir)
	require.NoError(t, err)
	require.NotNil(t, converter)
	require.NotNil(t, model.Workflow)

	wf := model.Workflow
	assert.Equal(t, "ci", wf.Name)
	assert.Equal(t, []string{"push", "pull_request"}, wf.On)
	assert.Equal(t, "saged", wf.Env["PACKAGE"])
	require.NotNil(t, wf.Strategy)
	assert.Equal(t, 5, wf.Strategy.MaxParallel)
	assert.Equal(t, []string{"3.5", "3.6", "3.7", "3.8"}, wf.Strategy.Matrix["python"])

	require.Len(t, wf.Steps, 1)
	assert.Equal(t, "shell", wf.Steps[0].RunnerType)
	assert.Equal(t, "lint", wf.Steps[0].Name)
	assert.Contains(t, wf.Steps[0].Arguments, "command")

	shellDef, ok := model.Runners["shell"]
	require.True(t, ok)
	assert.Equal(t, "OnRunShell", shellDef.Lifecycle.OnRun)

	shellInput := shellDef.Inputs["shell"]
	require.NotNil(t, shellInput)
	assert.True(t, shellInput.Optional)
	require.NotNil(t, shellInput.Default)
	assert.Equal(t, cty.StringVal("/bin/bash"), *shellInput.Default)

	cmdInput := shellDef.Inputs["command"]
	require.NotNil(t, cmdInput)
	assert.False(t, cmdInput.Optional)
}

func TestLoad_MatrixValuesCoerceToString(t *testing.T) {
	t.Parallel()

	dir := writeFiles(t, map[string]string{
		"main.hcl": `
workflow "ci" {
  on = ["push"]
  strategy {
    matrix {
      python = [3.5, 3.6]
    }
  }
}
`,
	})

	model, _, err := NewLoader().Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"3.5", "3.6"}, model.Workflow.Strategy.Matrix["python"])
}

func TestLoad_RejectsDuplicateWorkflow(t *testing.T) {
	t.Parallel()

	dir := writeFiles(t, map[string]string{
		"a.hcl": `workflow "one" { on = ["push"] }`,
		"b.hcl": `workflow "two" { on = ["push"] }`,
	})

	_, _, err := NewLoader().Load(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate workflow block")
}

func TestLoad_RequiresWorkflowBlock(t *testing.T) {
	t.Parallel()

	dir := writeFiles(t, map[string]string{
		"manifest.hcl": validManifest,
	})

	_, _, err := NewLoader().Load(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no workflow block found")
}

func TestLoad_RequiresTriggerEvents(t *testing.T) {
	t.Parallel()

	dir := writeFiles(t, map[string]string{
		"main.hcl": `workflow "ci" { on = [] }`,
	})

	_, _, err := NewLoader().Load(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'on' must list at least one trigger event")
}

func TestLoad_RunnerManifestRequiresLifecycle(t *testing.T) {
	t.Parallel()

	dir := writeFiles(t, map[string]string{
		"main.hcl": `workflow "ci" { on = ["push"] }`,
		"bad.hcl": `
runner "broken" {
  input "x" {
    type = string
  }
}
`,
	})

	_, _, err := NewLoader().Load(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lifecycle.on_run is required")
}

func TestLoad_ParseErrorSurfacesFile(t *testing.T) {
	t.Parallel()

	dir := writeFiles(t, map[string]string{
		"broken.hcl": `workflow "ci" {`,
	})

	_, _, err := NewLoader().Load(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestLoad_DefaultMustMatchDeclaredType(t *testing.T) {
	t.Parallel()

	dir := writeFiles(t, map[string]string{
		"main.hcl": `workflow "ci" { on = ["push"] }`,
		"bad.hcl": `
runner "broken" {
  lifecycle { on_run = "OnRunBroken" }
  input "count" {
    type    = number
    default = ["not", "a", "number"]
  }
}
`,
	})

	_, _, err := NewLoader().Load(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match type")
}
