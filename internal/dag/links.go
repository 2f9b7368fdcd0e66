package dag

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/gridci/internal/ctxlog"
	"github.com/vk/gridci/internal/registry"
)

// argSource pairs an expression with where it came from, since uses entries
// carry stricter rules than plain arguments.
type argSource struct {
	expr hcl.Expression
	uses bool
}

// linkExplicitDeps resolves dependencies from a `depends_on` list. Step
// addresses are written "runner_type.instance_name"; resource addresses are
// written "resource.asset_type.instance_name".
func linkExplicitDeps(ctx context.Context, node *Node, dependsOn []string, graph *Graph) error {
	logger := ctxlog.FromContext(ctx)

	for _, addr := range dependsOn {
		var depID string
		if strings.HasPrefix(addr, "resource.") {
			depID = addr
		} else {
			depID = "step." + addr
		}

		depNode, found := graph.Nodes[depID]
		if !found {
			return fmt.Errorf("node '%s' depends on non-existent identifier '%s'", node.ID, addr)
		}
		if depNode == node {
			return fmt.Errorf("node '%s' cannot depend on itself", node.ID)
		}

		if _, exists := node.Deps[depNode.ID]; !exists {
			logger.Debug("Linking explicit dependency.", "from_node_id", node.ID, "to_node_id", depNode.ID)
			node.Deps[depNode.ID] = depNode
			depNode.Dependents[node.ID] = node
		}
	}
	return nil
}

// linkImplicitDeps inspects an expression's variable traversals and links
// any step or resource references it finds. References to the ambient
// matrix/env/secrets objects carry no graph edges.
func linkImplicitDeps(ctx context.Context, node *Node, argName string, src argSource, graph *Graph, r *registry.Registry) error {
	logger := ctxlog.FromContext(ctx)

	for _, traversal := range src.expr.Variables() {
		switch traversal.RootName() {
		case "step":
			if src.uses {
				return fmt.Errorf("node '%s': uses entry %q must reference a resource, got a step", node.ID, argName)
			}
			depID, err := stepTraversalToID(traversal)
			if err != nil {
				return fmt.Errorf("node '%s', argument %q: %w", node.ID, argName, err)
			}
			depNode, found := graph.Nodes[depID]
			if !found {
				return fmt.Errorf("node '%s', argument %q references non-existent %s", node.ID, argName, depID)
			}
			if depNode == node {
				return fmt.Errorf("node '%s' cannot reference its own output", node.ID)
			}
			if err := validateOutputReference(traversal, depNode, r); err != nil {
				return err
			}
			node.Deps[depNode.ID] = depNode
			depNode.Dependents[node.ID] = node
			logger.Debug("Linking implicit step dependency.", "from_node_id", node.ID, "to_node_id", depID)

		case "resource":
			depID, err := resourceTraversalToID(traversal)
			if err != nil {
				return fmt.Errorf("node '%s', argument %q: %w", node.ID, argName, err)
			}
			depNode, found := graph.Nodes[depID]
			if !found {
				return fmt.Errorf("node '%s', argument %q references non-existent %s", node.ID, argName, depID)
			}
			node.Deps[depNode.ID] = depNode
			depNode.Dependents[node.ID] = node
			logger.Debug("Linking implicit resource dependency.", "from_node_id", node.ID, "to_node_id", depID)

		default:
			if src.uses {
				return fmt.Errorf("node '%s': uses entry %q must reference a resource, got '%s'", node.ID, argName, traversal.RootName())
			}
		}
	}
	return nil
}

// stepTraversalToID converts a step.<runner>.<name>... traversal into the
// canonical node ID.
func stepTraversalToID(t hcl.Traversal) (string, error) {
	if len(t) < 3 {
		return "", fmt.Errorf("incomplete step reference; expected step.<runner_type>.<instance_name>")
	}
	runnerAttr, ok := t[1].(hcl.TraverseAttr)
	if !ok {
		return "", fmt.Errorf("malformed step reference")
	}
	nameAttr, ok := t[2].(hcl.TraverseAttr)
	if !ok {
		return "", fmt.Errorf("malformed step reference")
	}
	return fmt.Sprintf("step.%s.%s", runnerAttr.Name, nameAttr.Name), nil
}

// resourceTraversalToID converts a resource.<asset_type>.<name> traversal
// into the canonical node ID.
func resourceTraversalToID(t hcl.Traversal) (string, error) {
	if len(t) < 3 {
		return "", fmt.Errorf("incomplete resource reference; expected resource.<asset_type>.<instance_name>")
	}
	typeAttr, ok := t[1].(hcl.TraverseAttr)
	if !ok {
		return "", fmt.Errorf("malformed resource reference")
	}
	nameAttr, ok := t[2].(hcl.TraverseAttr)
	if !ok {
		return "", fmt.Errorf("malformed resource reference")
	}
	return fmt.Sprintf("resource.%s.%s", typeAttr.Name, nameAttr.Name), nil
}

// validateOutputReference checks that a reference into a step's output names
// a declared output field: step.<runner>.<name>.output.<field>.
func validateOutputReference(traversal hcl.Traversal, depNode *Node, r *registry.Registry) error {
	if depNode.Type != StepNode || len(traversal) < 5 {
		return nil
	}

	outputNameAttr, ok := traversal[4].(hcl.TraverseAttr)
	if !ok {
		return nil
	}
	outputName := outputNameAttr.Name

	runnerDef, ok := r.DefinitionRegistry[depNode.StepConfig.RunnerType]
	if !ok {
		return fmt.Errorf("internal error: could not find definition for runner type %s", depNode.StepConfig.RunnerType)
	}

	if _, ok := runnerDef.Outputs[outputName]; ok {
		return nil
	}
	return fmt.Errorf("reference to undeclared output %q on step %q", outputName, depNode.ID)
}
