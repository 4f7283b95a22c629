package dag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeline builds load -> clean -> {summary, report}, with summary -> report.
func pipeline(t *testing.T) *Graph {
	t.Helper()
	g := NewGraph()
	for _, id := range []string{"load", "clean", "summary", "report"} {
		g.AddNode(id, "step "+id)
	}
	require.NoError(t, g.AddEdge("load", "clean"))
	require.NoError(t, g.AddEdge("clean", "summary"))
	require.NoError(t, g.AddEdge("clean", "report"))
	require.NoError(t, g.AddEdge("summary", "report"))
	return g
}

func ids(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func TestGraph_AddNodeAndEdge(t *testing.T) {
	g := pipeline(t)
	assert.Equal(t, 4, g.NodeCount())
	assert.Equal(t, 4, g.EdgeCount())

	require.NoError(t, g.AddEdge("load", "clean"), "duplicate edges are ignored")
	assert.Equal(t, 4, g.EdgeCount())

	g.AddNode("clean", "replaced")
	n, ok := g.GetNode("clean")
	require.True(t, ok)
	assert.Equal(t, "replaced", n.Data)
	assert.Equal(t, []string{"load", "clean", "summary", "report"}, ids(g.GetAllNodes()))
}

func TestGraph_AddEdgeErrors(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", nil)

	assert.Error(t, g.AddEdge("a", "missing"))
	assert.Error(t, g.AddEdge("missing", "a"))
	assert.Error(t, g.AddEdge("a", "a"))
}

func TestGraph_ParentsAndChildren(t *testing.T) {
	g := pipeline(t)
	assert.Equal(t, []string{"clean", "summary"}, g.GetParents("report"))
	assert.Equal(t, []string{"summary", "report"}, g.GetChildren("clean"))
	assert.Empty(t, g.GetParents("load"))
}

func TestGraph_TopologicalSortKeepsDeclarationOrder(t *testing.T) {
	g := NewGraph()
	g.AddNode("print_b", nil)
	g.AddNode("make_a", nil)
	g.AddNode("make_b", nil)
	g.AddNode("print_a", nil)
	require.NoError(t, g.AddEdge("make_b", "print_b"))
	require.NoError(t, g.AddEdge("make_a", "print_a"))

	sorted, err := g.TopologicalSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"make_a", "make_b", "print_b", "print_a"}, ids(sorted))

	sorted, err = pipeline(t).TopologicalSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"load", "clean", "summary", "report"}, ids(sorted))
}

func TestGraph_Cycle(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", nil)
	g.AddNode("b", nil)
	g.AddNode("c", nil)
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "c"))
	require.NoError(t, g.AddEdge("c", "a"))

	has, path := g.HasCycle()
	require.True(t, has)
	assert.Equal(t, []string{"a", "b", "c", "a"}, path)

	_, err := g.TopologicalSort()
	var cycleErr *CycleError
	require.True(t, errors.As(err, &cycleErr))
	assert.Equal(t, "cycle detected: a -> b -> c -> a", err.Error())

	_, err = g.GetExecutionLevels()
	assert.Error(t, err)

	has, _ = pipeline(t).HasCycle()
	assert.False(t, has)
}

func TestGraph_ExecutionLevels(t *testing.T) {
	g := pipeline(t)
	g.AddNode("standalone", nil)

	levels, err := g.GetExecutionLevels()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"load", "standalone"}, {"clean"}, {"summary"}, {"report"}}, levels)
}

func TestGraph_Selection(t *testing.T) {
	g := pipeline(t)

	assert.Equal(t, []string{"summary", "report"}, g.GetAffectedNodes([]string{"summary", "nope"}))
	assert.Equal(t, []string{"load"}, g.GetRoots())
	assert.Equal(t, []string{"report"}, g.GetLeaves())
}

func TestGraph_Subgraph(t *testing.T) {
	g := pipeline(t)
	sub := g.Subgraph([]string{"report", "clean", "unknown"})

	assert.Equal(t, []string{"clean", "report"}, ids(sub.GetAllNodes()))
	assert.Equal(t, 1, sub.EdgeCount())
	assert.Equal(t, []string{"clean"}, sub.GetParents("report"))
}
