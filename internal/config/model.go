package config

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// DefaultMaxParallel caps concurrent matrix combinations when the workflow
// does not set strategy.max_parallel itself.
const DefaultMaxParallel = 5

// Model is the unified, format-agnostic representation of the entire
// application configuration: the workflow under execution plus all module
// definitions it may reference.
type Model struct {
	Workflow *Workflow
	Runners  map[string]*RunnerDefinition
	Assets   map[string]*AssetDefinition
}

// Workflow represents the user's pipeline definition: trigger conditions,
// ambient environment, matrix strategy, and the step/resource graph.
type Workflow struct {
	Name      string
	On        []string
	Branches  []string
	Env       map[string]string
	Strategy  *Strategy
	Steps     []*Step
	Resources []*Resource
}

// Strategy describes how the workflow fans out across a matrix.
type Strategy struct {
	// Matrix maps axis names to their values. All values are coerced to
	// strings at load time; interpreter versions like "3.10" would otherwise
	// silently truncate as HCL numbers.
	Matrix map[string][]string

	// MaxParallel bounds how many combinations run at once.
	MaxParallel int

	// FailFast cancels remaining combinations after the first failure.
	FailFast bool
}

// Step is the format-agnostic representation of a `step` block.
type Step struct {
	RunnerType string
	Name       string
	Arguments  map[string]hcl.Expression
	Uses       map[string]hcl.Expression
	DependsOn  []string

	// ContinueOnError demotes this step's failure to a warning: dependents
	// still run and the overall run stays green.
	ContinueOnError bool
}

// Resource is the format-agnostic representation of a `resource` block.
type Resource struct {
	AssetType string
	Name      string
	Arguments map[string]hcl.Expression
	DependsOn []string
}

// --- Module manifest models ---

// RunnerDefinition is the format-agnostic representation of a runner's manifest.
type RunnerDefinition struct {
	Type        string
	Description string
	Lifecycle   *Lifecycle
	Inputs      map[string]*InputDefinition
	Outputs     map[string]*OutputDefinition
	Uses        map[string]*UsesDefinition
}

// AssetDefinition is the format-agnostic representation of an asset's manifest.
type AssetDefinition struct {
	Type        string
	Description string
	Lifecycle   *AssetLifecycle
	Inputs      map[string]*InputDefinition
	Outputs     map[string]*OutputDefinition
}

// Lifecycle maps a runner's events to Go handler names.
type Lifecycle struct {
	OnRun string
}

// AssetLifecycle maps an asset's events to Go handler names.
type AssetLifecycle struct {
	Create  string
	Destroy string
}

// InputDefinition defines a single input argument for a runner or asset.
type InputDefinition struct {
	Name        string
	Type        cty.Type
	Description string
	Default     *cty.Value
	Optional    bool
	Sensitive   bool
}

// OutputDefinition defines a single output value from a runner.
type OutputDefinition struct {
	Name        string
	Type        cty.Type
	Description string
}

// UsesDefinition defines an asset dependency for a runner.
type UsesDefinition struct {
	LocalName string
	AssetType string
}

// MaxParallel resolves the effective combination concurrency cap.
func (w *Workflow) MaxParallel() int {
	if w.Strategy == nil || w.Strategy.MaxParallel <= 0 {
		return DefaultMaxParallel
	}
	return w.Strategy.MaxParallel
}

// FailFast reports whether a failing combination should cancel the rest.
func (w *Workflow) FailFast() bool {
	return w.Strategy != nil && w.Strategy.FailFast
}
