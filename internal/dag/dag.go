// Package dag orders program steps by the datasets they read and write.
// It supports cycle detection, topological sorting and selection of
// upstream or downstream steps. Every listing follows declaration order so
// that a program runs the way it reads whenever dependencies allow.
package dag

import (
	"fmt"
	"slices"
	"strings"
)

// Node is one step in the graph.
type Node struct {
	// ID is the unique step name.
	ID string
	// Data holds the step definition.
	Data any

	index int
}

// Graph is a directed acyclic graph of steps.
type Graph struct {
	nodes   map[string]*Node
	order   []string
	edges   map[string][]string // parent -> children (dependents)
	parents map[string][]string // child -> parents (dependencies)
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:   make(map[string]*Node),
		edges:   make(map[string][]string),
		parents: make(map[string][]string),
	}
}

// AddNode adds a node, or replaces the data of an existing one without
// changing its position.
func (g *Graph) AddNode(id string, data any) {
	if n, exists := g.nodes[id]; exists {
		n.Data = data
		return
	}
	g.nodes[id] = &Node{ID: id, Data: data, index: len(g.order)}
	g.order = append(g.order, id)
	g.edges[id] = nil
	g.parents[id] = nil
}

// AddEdge records that child depends on parent.
func (g *Graph) AddEdge(parentID, childID string) error {
	if _, exists := g.nodes[parentID]; !exists {
		return fmt.Errorf("parent step %q does not exist", parentID)
	}
	if _, exists := g.nodes[childID]; !exists {
		return fmt.Errorf("child step %q does not exist", childID)
	}
	if parentID == childID {
		return fmt.Errorf("step %s depends on itself", parentID)
	}

	if !slices.Contains(g.edges[parentID], childID) {
		g.edges[parentID] = append(g.edges[parentID], childID)
	}
	if !slices.Contains(g.parents[childID], parentID) {
		g.parents[childID] = append(g.parents[childID], parentID)
	}
	return nil
}

// GetNode returns a node by ID.
func (g *Graph) GetNode(id string) (*Node, bool) {
	node, exists := g.nodes[id]
	return node, exists
}

// GetParents returns the direct dependencies of a node.
func (g *Graph) GetParents(id string) []string {
	return g.sorted(g.parents[id])
}

// GetChildren returns the direct dependents of a node.
func (g *Graph) GetChildren(id string) []string {
	return g.sorted(g.edges[id])
}

// GetAllNodes returns every node in declaration order.
func (g *Graph) GetAllNodes() []*Node {
	nodes := make([]*Node, len(g.order))
	for i, id := range g.order {
		nodes[i] = g.nodes[id]
	}
	return nodes
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.order) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, children := range g.edges {
		count += len(children)
	}
	return count
}

// HasCycle reports whether the graph has a cycle, and the cycle's path
// starting and ending at the same node.
func (g *Graph) HasCycle() (bool, []string) {
	const (
		unvisited = iota
		active
		done
	)
	state := make(map[string]int, len(g.nodes))
	var stack []string
	var cycle []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		state[id] = active
		stack = append(stack, id)
		for _, child := range g.GetChildren(id) {
			switch state[child] {
			case unvisited:
				if dfs(child) {
					return true
				}
			case active:
				for i, s := range stack {
					if s == child {
						cycle = append(append([]string(nil), stack[i:]...), child)
						return true
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return false
	}

	for _, id := range g.order {
		if state[id] == unvisited && dfs(id) {
			return true, cycle
		}
	}
	return false, nil
}

// CycleError reports a dependency cycle.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "cycle detected: " + strings.Join(e.Path, " -> ")
}

// TopologicalSort returns nodes with dependencies before dependents.
// Among nodes whose dependencies are satisfied the earliest declared
// comes first.
func (g *Graph) TopologicalSort() ([]*Node, error) {
	if hasCycle, path := g.HasCycle(); hasCycle {
		return nil, &CycleError{Path: path}
	}

	indegree := make(map[string]int, len(g.nodes))
	for _, id := range g.order {
		indegree[id] = len(g.parents[id])
	}

	result := make([]*Node, 0, len(g.order))
	emitted := make(map[string]bool, len(g.order))
	for len(result) < len(g.order) {
		for _, id := range g.order {
			if emitted[id] || indegree[id] > 0 {
				continue
			}
			emitted[id] = true
			result = append(result, g.nodes[id])
			for _, child := range g.edges[id] {
				indegree[child]--
			}
			break
		}
	}
	return result, nil
}

// GetExecutionLevels groups nodes so that level N only depends on levels
// before it. Level 0 holds nodes without dependencies.
func (g *Graph) GetExecutionLevels() ([][]string, error) {
	sorted, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}

	level := make(map[string]int, len(sorted))
	var levels [][]string
	for _, n := range sorted {
		l := 0
		for _, p := range g.parents[n.ID] {
			if level[p]+1 > l {
				l = level[p] + 1
			}
		}
		level[n.ID] = l
		for len(levels) <= l {
			levels = append(levels, nil)
		}
		levels[l] = append(levels[l], n.ID)
	}
	for i := range levels {
		levels[i] = g.sorted(levels[i])
	}
	return levels, nil
}

// GetAffectedNodes returns the given nodes and everything downstream of
// them, in declaration order. Unknown IDs are ignored.
func (g *Graph) GetAffectedNodes(ids []string) []string {
	affected := make(map[string]bool)

	var mark func(id string)
	mark = func(id string) {
		if affected[id] {
			return
		}
		affected[id] = true
		for _, child := range g.edges[id] {
			mark(child)
		}
	}
	for _, id := range ids {
		if _, exists := g.nodes[id]; exists {
			mark(id)
		}
	}
	return g.sortedSet(affected)
}

// GetRoots returns nodes without dependencies.
func (g *Graph) GetRoots() []string {
	var roots []string
	for _, id := range g.order {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// GetLeaves returns nodes nothing depends on.
func (g *Graph) GetLeaves() []string {
	var leaves []string
	for _, id := range g.order {
		if len(g.edges[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	return leaves
}

// Subgraph returns a graph of the given nodes and the edges among them,
// keeping the original declaration order.
func (g *Graph) Subgraph(ids []string) *Graph {
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, exists := g.nodes[id]; exists {
			keep[id] = true
		}
	}

	sub := NewGraph()
	for _, id := range g.order {
		if keep[id] {
			sub.AddNode(id, g.nodes[id].Data)
		}
	}
	for _, id := range sub.order {
		for _, child := range g.edges[id] {
			if keep[child] {
				_ = sub.AddEdge(id, child)
			}
		}
	}
	return sub
}

func (g *Graph) sorted(ids []string) []string {
	out := slices.Clone(ids)
	slices.SortFunc(out, func(a, b string) int { return g.nodes[a].index - g.nodes[b].index })
	return out
}

func (g *Graph) sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for _, id := range g.order {
		if set[id] {
			out = append(out, id)
		}
	}
	return out
}
