package dag

import (
	"context"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/gridci/internal/ctxlog"
)

// buildEvalContext creates the HCL evaluation context for a node. It starts
// from the run's ambient variables (matrix, env, secrets) and layers in the
// outputs of every completed step, shaped as
// step.<runner_type>.<instance_name>.output.<field>.
func (e *Executor) buildEvalContext(ctx context.Context, node *Node) *hcl.EvalContext {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Building evaluation context.", "node", node.ID)

	vars := make(map[string]cty.Value, len(e.baseVars)+1)
	for name, val := range e.baseVars {
		vars[name] = val
	}

	stepOutputsByRunner := make(map[string]map[string]cty.Value)
	for _, graphNode := range e.Graph.Nodes {
		if graphNode.Type != StepNode || graphNode.GetState() != Done || graphNode.Output == nil {
			continue
		}
		output, ok := graphNode.Output.(cty.Value)
		if !ok {
			continue
		}

		runnerType := graphNode.StepConfig.RunnerType
		instanceName := graphNode.StepConfig.Name
		if _, ok := stepOutputsByRunner[runnerType]; !ok {
			stepOutputsByRunner[runnerType] = make(map[string]cty.Value)
		}
		stepOutputsByRunner[runnerType][instanceName] = cty.ObjectVal(map[string]cty.Value{
			"output": output,
		})
	}

	finalStepOutputs := make(map[string]cty.Value, len(stepOutputsByRunner))
	for runnerType, instancesMap := range stepOutputsByRunner {
		finalStepOutputs[runnerType] = cty.ObjectVal(instancesMap)
	}
	vars["step"] = cty.ObjectVal(finalStepOutputs)

	logger.Debug("Finished building evaluation context.", "node", node.ID, "vars_count", len(vars))
	return &hcl.EvalContext{Variables: vars}
}
