package dag

import (
	"context"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/gridci/internal/config"
	"github.com/vk/gridci/internal/registry"
)

func expr(t *testing.T, src string) hcl.Expression {
	t.Helper()
	e, diags := hclsyntax.ParseExpression([]byte(src), "test.hcl", hcl.Pos{Line: 1, Column: 1})
	require.False(t, diags.HasErrors(), "failed to parse expression %q: %s", src, diags)
	return e
}

func testRegistry() *registry.Registry {
	r := registry.New()
	r.DefinitionRegistry["shell"] = &config.RunnerDefinition{
		Type:      "shell",
		Lifecycle: &config.Lifecycle{OnRun: "OnRunShell"},
		Inputs:    map[string]*config.InputDefinition{},
		Outputs: map[string]*config.OutputDefinition{
			"stdout": {Name: "stdout"},
		},
	}
	r.AssetDefinitionRegistry["workspace"] = &config.AssetDefinition{
		Type:      "workspace",
		Lifecycle: &config.AssetLifecycle{Create: "CreateWorkspace", Destroy: "DestroyWorkspace"},
		Inputs:    map[string]*config.InputDefinition{},
	}
	return r
}

func TestBuild_LinksExplicitAndImplicitDeps(t *testing.T) {
	t.Parallel()

	wf := &config.Workflow{
		Steps: []*config.Step{
			{RunnerType: "shell", Name: "a", Arguments: map[string]hcl.Expression{}},
			{
				RunnerType: "shell",
				Name:       "b",
				Arguments: map[string]hcl.Expression{
					"command": expr(t, "step.shell.a.output.stdout"),
				},
			},
			{
				RunnerType: "shell",
				Name:       "c",
				DependsOn:  []string{"shell.b"},
			},
		},
	}

	graph, err := Build(context.Background(), wf, testRegistry())
	require.NoError(t, err)
	require.Len(t, graph.Nodes, 3)

	b := graph.Nodes["step.shell.b"]
	require.NotNil(t, b)
	assert.Contains(t, b.Deps, "step.shell.a")

	c := graph.Nodes["step.shell.c"]
	require.NotNil(t, c)
	assert.Contains(t, c.Deps, "step.shell.b")
}

func TestBuild_UnknownRunnerTypeFails(t *testing.T) {
	t.Parallel()

	wf := &config.Workflow{
		Steps: []*config.Step{
			{RunnerType: "nonexistent", Name: "a"},
		},
	}

	_, err := Build(context.Background(), wf, testRegistry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown runner type 'nonexistent'")
}

func TestBuild_DuplicateStepFails(t *testing.T) {
	t.Parallel()

	wf := &config.Workflow{
		Steps: []*config.Step{
			{RunnerType: "shell", Name: "a"},
			{RunnerType: "shell", Name: "a"},
		},
	}

	_, err := Build(context.Background(), wf, testRegistry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate step definition 'step.shell.a'")
}

func TestBuild_CycleFails(t *testing.T) {
	t.Parallel()

	wf := &config.Workflow{
		Steps: []*config.Step{
			{RunnerType: "shell", Name: "a", DependsOn: []string{"shell.b"}},
			{RunnerType: "shell", Name: "b", DependsOn: []string{"shell.a"}},
		},
	}

	_, err := Build(context.Background(), wf, testRegistry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle detected")
}

func TestBuild_UndeclaredOutputReferenceFails(t *testing.T) {
	t.Parallel()

	wf := &config.Workflow{
		Steps: []*config.Step{
			{RunnerType: "shell", Name: "a"},
			{
				RunnerType: "shell",
				Name:       "b",
				Arguments: map[string]hcl.Expression{
					"command": expr(t, "step.shell.a.output.no_such_field"),
				},
			},
		},
	}

	_, err := Build(context.Background(), wf, testRegistry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `undeclared output "no_such_field"`)
}

func TestBuild_UsesMustReferenceResource(t *testing.T) {
	t.Parallel()

	wf := &config.Workflow{
		Steps: []*config.Step{
			{RunnerType: "shell", Name: "a"},
			{
				RunnerType: "shell",
				Name:       "b",
				Uses: map[string]hcl.Expression{
					"client": expr(t, "step.shell.a"),
				},
			},
		},
	}

	_, err := Build(context.Background(), wf, testRegistry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must reference a resource")
}

func TestBuild_ResourceNodes(t *testing.T) {
	t.Parallel()

	wf := &config.Workflow{
		Resources: []*config.Resource{
			{AssetType: "workspace", Name: "build"},
		},
		Steps: []*config.Step{
			{
				RunnerType: "shell",
				Name:       "a",
				Uses: map[string]hcl.Expression{
					"workspace": expr(t, "resource.workspace.build"),
				},
			},
		},
	}

	graph, err := Build(context.Background(), wf, testRegistry())
	require.NoError(t, err)

	res := graph.Nodes["resource.workspace.build"]
	require.NotNil(t, res)
	assert.Equal(t, ResourceNode, res.Type)

	step := graph.Nodes["step.shell.a"]
	require.NotNil(t, step)
	assert.Contains(t, step.Deps, "resource.workspace.build")
}
