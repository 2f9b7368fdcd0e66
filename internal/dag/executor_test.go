package dag

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/gridci/internal/config"
	gridhcl "github.com/vk/gridci/internal/hcl"
	"github.com/vk/gridci/internal/registry"
)

type recorder struct {
	mu  sync.Mutex
	ids []string
}

func (r *recorder) add(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

type recordInput struct {
	ID   string `grid:"id"`
	Fail bool   `grid:"fail"`
}

// executorFixture wires a "record" runner whose handler appends its id to the
// shared recorder, failing when asked to.
func executorFixture(t *testing.T, rec *recorder) *registry.Registry {
	t.Helper()
	r := registry.New()

	failDefault := cty.BoolVal(false)
	r.DefinitionRegistry["record"] = &config.RunnerDefinition{
		Type:      "record",
		Lifecycle: &config.Lifecycle{OnRun: "OnRunRecord"},
		Inputs: map[string]*config.InputDefinition{
			"id":   {Name: "id"},
			"fail": {Name: "fail", Default: &failDefault, Optional: true},
		},
		Outputs: map[string]*config.OutputDefinition{
			"id": {Name: "id"},
		},
	}
	r.RegisterRunner("OnRunRecord", &registry.RegisteredRunner{
		NewInput:  func() any { return new(recordInput) },
		InputType: reflect.TypeOf(recordInput{}),
		NewDeps:   func() any { return new(struct{}) },
		Fn: func(ctx context.Context, deps any, inputRaw any) (any, error) {
			input := inputRaw.(*recordInput)
			if input.Fail {
				return nil, fmt.Errorf("step %s failed on purpose", input.ID)
			}
			rec.add(input.ID)
			return &struct {
				ID string `cty:"id"`
			}{ID: input.ID}, nil
		},
	})
	return r
}

func recordStep(t *testing.T, name, id string, fail bool, dependsOn ...string) *config.Step {
	t.Helper()
	args := map[string]hcl.Expression{
		"id": expr(t, fmt.Sprintf("%q", id)),
	}
	if fail {
		args["fail"] = expr(t, "true")
	}
	return &config.Step{
		RunnerType: "record",
		Name:       name,
		Arguments:  args,
		DependsOn:  dependsOn,
	}
}

func runGraph(t *testing.T, wf *config.Workflow, r *registry.Registry) error {
	t.Helper()
	graph, err := Build(context.Background(), wf, r)
	require.NoError(t, err)
	exec := New(graph, 4, r, gridhcl.NewConverter(), nil, nil)
	return exec.Run(context.Background())
}

func TestExecutor_RunsInDependencyOrder(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	r := executorFixture(t, rec)

	wf := &config.Workflow{
		Steps: []*config.Step{
			recordStep(t, "a", "a", false),
			recordStep(t, "b", "b", false, "record.a"),
			recordStep(t, "c", "c", false, "record.b"),
		},
	}

	require.NoError(t, runGraph(t, wf, r))
	assert.Equal(t, []string{"a", "b", "c"}, rec.all())
}

func TestExecutor_StrictFailureSkipsDependents(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	r := executorFixture(t, rec)

	wf := &config.Workflow{
		Steps: []*config.Step{
			recordStep(t, "a", "a", false),
			recordStep(t, "boom", "boom", true, "record.a"),
			recordStep(t, "after", "after", false, "record.boom"),
		},
	}

	err := runGraph(t, wf, r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed on purpose")
	assert.Contains(t, err.Error(), "step.record.boom")
	assert.NotContains(t, rec.all(), "after")
}

func TestExecutor_ContinueOnErrorSchedulesDependents(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	r := executorFixture(t, rec)

	advisory := recordStep(t, "advisory", "advisory", true, "record.a")
	advisory.ContinueOnError = true

	wf := &config.Workflow{
		Steps: []*config.Step{
			recordStep(t, "a", "a", false),
			advisory,
			recordStep(t, "after", "after", false, "record.advisory"),
		},
	}

	err := runGraph(t, wf, r)
	require.NoError(t, err, "an advisory failure must not fail the run")
	assert.Contains(t, rec.all(), "after")
}

func TestExecutor_CancellationDrainsGraph(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	r := executorFixture(t, rec)

	wf := &config.Workflow{
		Steps: []*config.Step{
			recordStep(t, "a", "a", false),
			recordStep(t, "b", "b", false, "record.a"),
			recordStep(t, "c", "c", false, "record.b"),
		},
	}

	graph, err := Build(context.Background(), wf, r)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Canceled nodes must release their dependents' WaitGroup slots, or
	// Run never returns.
	done := make(chan error, 1)
	go func() {
		exec := New(graph, 2, r, gridhcl.NewConverter(), nil, nil)
		done <- exec.Run(ctx)
	}()

	select {
	case err := <-done:
		require.NoError(t, err, "cancellation is not a step failure")
	case <-time.After(5 * time.Second):
		t.Fatal("executor did not return after context cancellation")
	}
	assert.Empty(t, rec.all())
}

func TestExecutor_OutputFlowsDownstream(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	r := executorFixture(t, rec)

	wf := &config.Workflow{
		Steps: []*config.Step{
			recordStep(t, "a", "first", false),
			{
				RunnerType: "record",
				Name:       "b",
				Arguments: map[string]hcl.Expression{
					"id": expr(t, "step.record.a.output.id"),
				},
			},
		},
	}

	require.NoError(t, runGraph(t, wf, r))
	assert.Equal(t, []string{"first", "first"}, rec.all())
}

func TestExecutor_ResourceLifecycle(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	r := executorFixture(t, rec)

	type probe struct{ name string }

	r.AssetDefinitionRegistry["probe"] = &config.AssetDefinition{
		Type:      "probe",
		Lifecycle: &config.AssetLifecycle{Create: "CreateProbe", Destroy: "DestroyProbe"},
		Inputs:    map[string]*config.InputDefinition{},
	}
	r.RegisterAssetHandler("CreateProbe", &registry.RegisteredAsset{
		NewInput: func() any { return new(struct{}) },
		CreateFn: func(ctx context.Context, input *struct{}) (*probe, error) {
			rec.add("create")
			return &probe{name: "p"}, nil
		},
	})
	r.RegisterAssetHandler("DestroyProbe", &registry.RegisteredAsset{
		DestroyFn: func(p *probe) error {
			rec.add("destroy")
			return nil
		},
	})

	type probeDeps struct {
		P *probe `grid:"p"`
	}
	r.DefinitionRegistry["use_probe"] = &config.RunnerDefinition{
		Type:      "use_probe",
		Lifecycle: &config.Lifecycle{OnRun: "OnRunUseProbe"},
		Inputs:    map[string]*config.InputDefinition{},
		Uses:      map[string]*config.UsesDefinition{"p": {LocalName: "p", AssetType: "probe"}},
	}
	r.RegisterRunner("OnRunUseProbe", &registry.RegisteredRunner{
		NewInput:  func() any { return new(struct{}) },
		InputType: reflect.TypeOf(struct{}{}),
		NewDeps:   func() any { return new(probeDeps) },
		Fn: func(ctx context.Context, deps *probeDeps, input *struct{}) (any, error) {
			require.NotNil(t, deps.P)
			rec.add("use:" + deps.P.name)
			return nil, nil
		},
	})

	wf := &config.Workflow{
		Resources: []*config.Resource{
			{AssetType: "probe", Name: "x"},
		},
		Steps: []*config.Step{
			{
				RunnerType: "use_probe",
				Name:       "consumer",
				Uses: map[string]hcl.Expression{
					"p": expr(t, "resource.probe.x"),
				},
			},
		},
	}

	require.NoError(t, runGraph(t, wf, r))
	assert.Equal(t, []string{"create", "use:p", "destroy"}, rec.all())
}
