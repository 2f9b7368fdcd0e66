package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNode(id string) *Node {
	return &Node{
		ID:         id,
		Type:       StepNode,
		Deps:       make(map[string]*Node),
		Dependents: make(map[string]*Node),
	}
}

func link(from, to *Node) {
	// to depends on from
	to.Deps[from.ID] = from
	from.Dependents[to.ID] = to
}

func TestDetectCycles(t *testing.T) {
	t.Parallel()

	t.Run("empty graph has no cycles", func(t *testing.T) {
		g := &Graph{Nodes: map[string]*Node{}}
		assert.NoError(t, g.detectCycles())
	})

	t.Run("valid dag has no cycles", func(t *testing.T) {
		a, b, c, d := newTestNode("a"), newTestNode("b"), newTestNode("c"), newTestNode("d")
		link(a, b)
		link(b, c)
		link(a, c) // Transitive edge
		link(c, d)
		g := &Graph{Nodes: map[string]*Node{"a": a, "b": b, "c": c, "d": d}}
		assert.NoError(t, g.detectCycles())
	})

	t.Run("direct cycle is detected", func(t *testing.T) {
		a, b := newTestNode("a"), newTestNode("b")
		link(a, b)
		link(b, a)
		g := &Graph{Nodes: map[string]*Node{"a": a, "b": b}}
		err := g.detectCycles()
		require.Error(t, err)
		assert.ErrorContains(t, err, "cycle detected")
	})

	t.Run("longer cycle is detected", func(t *testing.T) {
		a, b, c, d := newTestNode("a"), newTestNode("b"), newTestNode("c"), newTestNode("d")
		link(a, b)
		link(b, c)
		link(c, d)
		link(d, a)
		g := &Graph{Nodes: map[string]*Node{"a": a, "b": b, "c": c, "d": d}}
		assert.ErrorContains(t, g.detectCycles(), "cycle detected")
	})
}

func TestSetInitialCounters(t *testing.T) {
	t.Parallel()

	res := newTestNode("resource.r.x")
	res.Type = ResourceNode
	s1, s2 := newTestNode("step.a.one"), newTestNode("step.a.two")
	link(res, s1)
	link(res, s2)
	link(s1, s2)

	for _, n := range []*Node{res, s1, s2} {
		n.SetInitialCounters()
	}

	assert.Equal(t, int32(0), res.depCount.Load())
	assert.Equal(t, int32(1), s1.depCount.Load())
	assert.Equal(t, int32(2), s2.depCount.Load())
	// Only step consumers keep a resource alive.
	assert.Equal(t, int32(2), res.descendantCount.Load())
}
