package dag

import (
	"context"
	"fmt"

	"github.com/vk/gridci/internal/config"
	"github.com/vk/gridci/internal/ctxlog"
	"github.com/vk/gridci/internal/registry"
)

// Build constructs a complete, validated dependency graph for one run of the
// workflow. Matrix expansion happens above this layer; Build sees the final
// step list.
func Build(ctx context.Context, wf *config.Workflow, r *registry.Registry) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: Starting graph construction.")
	graph := &Graph{Nodes: make(map[string]*Node)}

	// First pass: create all nodes for steps and resources.
	if err := createNodes(ctx, wf, graph, r); err != nil {
		return nil, err
	}
	logger.Debug("Build: Node creation complete.", "node_count", len(graph.Nodes))

	// Second pass: link dependencies.
	if err := linkNodes(ctx, wf, graph, r); err != nil {
		return nil, err
	}
	logger.Debug("Build: Node linking complete.")

	// Third pass: initialize scheduling counters.
	for _, node := range graph.Nodes {
		node.SetInitialCounters()
	}

	if err := graph.detectCycles(); err != nil {
		return nil, fmt.Errorf("error validating dependency graph: %w", err)
	}
	logger.Debug("Build: Graph construction successful.")
	return graph, nil
}

// createNodes performs the first pass of graph creation. Duplicate node IDs
// and unknown runner/asset types are load-time errors.
func createNodes(ctx context.Context, wf *config.Workflow, graph *Graph, r *registry.Registry) error {
	for _, s := range wf.Steps {
		if _, ok := r.DefinitionRegistry[s.RunnerType]; !ok {
			return fmt.Errorf("step '%s.%s' references unknown runner type '%s'", s.RunnerType, s.Name, s.RunnerType)
		}
		id := fmt.Sprintf("step.%s.%s", s.RunnerType, s.Name)
		if _, exists := graph.Nodes[id]; exists {
			return fmt.Errorf("duplicate step definition '%s'", id)
		}
		graph.Nodes[id] = &Node{
			ID:         id,
			Name:       s.Name,
			Type:       StepNode,
			StepConfig: s,
			Deps:       make(map[string]*Node),
			Dependents: make(map[string]*Node),
		}
	}
	for _, res := range wf.Resources {
		if _, ok := r.AssetDefinitionRegistry[res.AssetType]; !ok {
			return fmt.Errorf("resource '%s.%s' references unknown asset type '%s'", res.AssetType, res.Name, res.AssetType)
		}
		id := fmt.Sprintf("resource.%s.%s", res.AssetType, res.Name)
		if _, exists := graph.Nodes[id]; exists {
			return fmt.Errorf("duplicate resource definition '%s'", id)
		}
		graph.Nodes[id] = &Node{
			ID:             id,
			Name:           res.Name,
			Type:           ResourceNode,
			ResourceConfig: res,
			Deps:           make(map[string]*Node),
			Dependents:     make(map[string]*Node),
		}
	}
	return nil
}

// linkNodes performs the second pass, establishing dependency links from
// both depends_on entries and expression references.
func linkNodes(ctx context.Context, wf *config.Workflow, graph *Graph, r *registry.Registry) error {
	logger := ctxlog.FromContext(ctx)

	for _, node := range graph.Nodes {
		var dependsOn []string
		args := make(map[string]argSource)

		if node.Type == StepNode {
			dependsOn = node.StepConfig.DependsOn
			for name, expr := range node.StepConfig.Arguments {
				args[name] = argSource{expr: expr}
			}
			for name, expr := range node.StepConfig.Uses {
				args[name] = argSource{expr: expr, uses: true}
			}
		} else {
			dependsOn = node.ResourceConfig.DependsOn
			for name, expr := range node.ResourceConfig.Arguments {
				args[name] = argSource{expr: expr}
			}
		}

		if err := linkExplicitDeps(ctx, node, dependsOn, graph); err != nil {
			return err
		}
		for name, src := range args {
			if err := linkImplicitDeps(ctx, node, name, src, graph, r); err != nil {
				return err
			}
		}
		logger.Debug("Linked node dependencies.", "node_id", node.ID, "deps", len(node.Deps))
	}
	return nil
}
