// Package schema declares the HCL struct schemas for workflow files and
// module manifests. These types are an HCL implementation detail; the rest
// of the engine consumes the config model instead.
package schema

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// --- Primary workflow structures ---

// StepArgs represents the content of the 'arguments' block within a step.
type StepArgs struct {
	Body hcl.Body `hcl:",remain"`
}

// UsesBlock represents the content of the 'uses' block within a step.
type UsesBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// Step represents a `step` block from a user's workflow file. It is a
// runnable instance of a defined runner.
type Step struct {
	RunnerType      string     `hcl:"runner_type,label"`
	Name            string     `hcl:"instance_name,label"`
	Arguments       *StepArgs  `hcl:"arguments,block"`
	Uses            *UsesBlock `hcl:"uses,block"`
	DependsOn       []string   `hcl:"depends_on,optional"`
	ContinueOnError bool       `hcl:"continue_on_error,optional"`
}

// Resource represents a `resource` block from a user's workflow file. It is
// a managed, stateful instance of a defined asset.
type Resource struct {
	AssetType string    `hcl:"asset_type,label"`
	Name      string    `hcl:"instance_name,label"`
	Arguments *StepArgs `hcl:"arguments,block"`
	DependsOn []string  `hcl:"depends_on,optional"`
}

// Matrix represents the `matrix` block within a strategy. Axis names are
// user-chosen, so the body is kept raw and read as attributes.
type Matrix struct {
	Body hcl.Body `hcl:",remain"`
}

// Strategy represents the `strategy` block of a workflow.
type Strategy struct {
	Matrix      *Matrix `hcl:"matrix,block"`
	MaxParallel int     `hcl:"max_parallel,optional"`
	FailFast    bool    `hcl:"fail_fast,optional"`
}

// Workflow represents the `workflow` block: trigger events, ambient
// environment, and the matrix strategy.
type Workflow struct {
	Name     string            `hcl:"name,label"`
	On       []string          `hcl:"on"`
	Branches []string          `hcl:"branches,optional"`
	Env      map[string]string `hcl:"env,optional"`
	Strategy *Strategy         `hcl:"strategy,block"`
}

// File represents the top-level structure of any .hcl file the loader
// accepts. Workflow files and module manifests share one schema so a single
// decode pass classifies each file by the blocks it actually contains.
type File struct {
	Workflow  *Workflow         `hcl:"workflow,block"`
	Steps     []*Step           `hcl:"step,block"`
	Resources []*Resource       `hcl:"resource,block"`
	Runner    *RunnerDefinition `hcl:"runner,block"`
	Asset     *AssetDefinition  `hcl:"asset,block"`
	Body      hcl.Body          `hcl:",remain"`
}

// --- Module manifest schemas ---

// Lifecycle defines the mapping from a runner's lifecycle event to a
// registered Go handler function.
type Lifecycle struct {
	OnRun string `hcl:"on_run,optional"`
}

// AssetLifecycle defines the mapping from a resource's lifecycle events
// (create, destroy) to registered Go handler functions.
type AssetLifecycle struct {
	Create  string `hcl:"create"`
	Destroy string `hcl:"destroy"`
}

// InputDefinition defines a single input variable for a runner or asset.
type InputDefinition struct {
	Name        string         `hcl:"name,label"`
	Type        hcl.Expression `hcl:"type"`
	Description string         `hcl:"description,optional"`
	Default     *cty.Value     `hcl:"default,optional"`
	Sensitive   bool           `hcl:"sensitive,optional"`
}

// OutputDefinition defines a single output value produced by a runner or asset.
type OutputDefinition struct {
	Name        string         `hcl:"name,label"`
	Type        hcl.Expression `hcl:"type"`
	Description string         `hcl:"description,optional"`
}

// UsesDefinition defines an asset dependency required by a runner.
type UsesDefinition struct {
	LocalName string `hcl:"local_name,label"`
	AssetType string `hcl:"asset_type"`
}

// RunnerDefinition represents the HCL manifest for a runnable `runner` type.
type RunnerDefinition struct {
	Type        string              `hcl:"type,label"`
	Description string              `hcl:"description,optional"`
	Lifecycle   *Lifecycle          `hcl:"lifecycle,block"`
	Inputs      []*InputDefinition  `hcl:"input,block"`
	Outputs     []*OutputDefinition `hcl:"output,block"`
	Uses        []*UsesDefinition   `hcl:"uses,block"`
}

// AssetDefinition represents the HCL manifest for a stateful `asset` type.
type AssetDefinition struct {
	Type        string              `hcl:"type,label"`
	Description string              `hcl:"description,optional"`
	Lifecycle   *AssetLifecycle     `hcl:"lifecycle,block"`
	Inputs      []*InputDefinition  `hcl:"input,block"`
	Outputs     []*OutputDefinition `hcl:"output,block"`
}
