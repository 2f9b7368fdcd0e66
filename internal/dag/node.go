package dag

import (
	"sync"
	"sync/atomic"

	"github.com/vk/gridci/internal/config"
)

// NodeType distinguishes step nodes from resource nodes.
type NodeType int

const (
	StepNode NodeType = iota
	ResourceNode
)

// NodeState tracks a node through its lifecycle.
type NodeState int32

const (
	Pending NodeState = iota
	Running
	Done
	Failed
)

// Node is a single vertex in the execution graph.
type Node struct {
	ID   string
	Name string
	Type NodeType

	StepConfig     *config.Step
	ResourceConfig *config.Resource

	Deps       map[string]*Node
	Dependents map[string]*Node

	// Output holds the step's converted cty.Value output, or the live
	// instance for resource nodes. Written only by the owning worker.
	Output any

	// Error records why the node failed, or the swallowed error of an
	// advisory step.
	Error error

	// AdvisoryFailure marks a step that failed but was configured with
	// continue_on_error, so the failure did not fail the run.
	AdvisoryFailure bool

	state           atomic.Int32
	depCount        atomic.Int32
	descendantCount atomic.Int32

	skipOnce    sync.Once
	destroyOnce sync.Once
	destroyFn   func()
}

// SetState atomically updates the node's lifecycle state.
func (n *Node) SetState(s NodeState) {
	n.state.Store(int32(s))
}

// GetState atomically reads the node's lifecycle state.
func (n *Node) GetState() NodeState {
	return NodeState(n.state.Load())
}

// DecrementDepCount marks one dependency as satisfied and returns how many
// remain.
func (n *Node) DecrementDepCount() int32 {
	return n.depCount.Add(-1)
}

// SetInitialCounters seeds the scheduling counters after linking.
// descendantCount only matters for resource nodes: it counts the step nodes
// that still need the resource alive.
func (n *Node) SetInitialCounters() {
	n.depCount.Store(int32(len(n.Deps)))

	if n.Type == ResourceNode {
		var stepDependents int32
		for _, dep := range n.Dependents {
			if dep.Type == StepNode {
				stepDependents++
			}
		}
		n.descendantCount.Store(stepDependents)
	}
}
