package engine

// graph.go - Step dependency graph construction and selection

import (
	"fmt"

	"github.com/leapstack-labs/leapstep/internal/dag"
)

// buildGraph links every step to the earlier steps producing the datasets
// it reads. A work dataset must be produced by an earlier step; anything
// else is taken to be stored in its library already. DATA and PRINT steps
// also depend on the latest preceding FORMAT step.
func buildGraph(p *Program) (*dag.Graph, error) {
	g := dag.NewGraph()
	for _, s := range p.Steps {
		g.AddNode(s.Name, s)
	}

	producer := make(map[string]string)
	var lastFormat string
	for _, s := range p.Steps {
		for _, in := range s.Reads() {
			if prod, ok := producer[in]; ok {
				if err := g.AddEdge(prod, s.Name); err != nil {
					return nil, err
				}
				continue
			}
			if isWork(in) {
				if later := laterProducer(p, s, in); later != "" {
					return nil, fmt.Errorf("step %s reads %s before step %s creates it", s.Name, in, later)
				}
				return nil, fmt.Errorf("step %s reads %s, which no step creates", s.Name, in)
			}
		}
		if lastFormat != "" && (s.Kind == KindData || s.Kind == KindPrint) {
			if err := g.AddEdge(lastFormat, s.Name); err != nil {
				return nil, err
			}
		}
		for _, out := range s.Writes() {
			producer[out] = s.Name
		}
		if s.Kind == KindFormat {
			lastFormat = s.Name
		}
	}

	if hasCycle, path := g.HasCycle(); hasCycle {
		return nil, &dag.CycleError{Path: path}
	}
	return g, nil
}

func laterProducer(p *Program, after *Step, dataset string) string {
	past := false
	for _, s := range p.Steps {
		if s == after {
			past = true
			continue
		}
		if !past {
			continue
		}
		for _, out := range s.Writes() {
			if out == dataset {
				return s.Name
			}
		}
	}
	return ""
}

// selectSteps returns the steps to run for a selection: the selected
// steps, optionally everything downstream of them, and the upstream steps
// that rebuild the work datasets and formats they rely on, since neither
// outlives a run.
func selectSteps(g *dag.Graph, names []string, downstream bool) ([]string, error) {
	for _, n := range names {
		if _, ok := g.GetNode(n); !ok {
			return nil, fmt.Errorf("unknown step %q", n)
		}
	}

	selected := names
	if downstream {
		selected = g.GetAffectedNodes(names)
	}

	needed := make(map[string]bool)
	var queue []string
	for _, n := range selected {
		if !needed[n] {
			needed[n] = true
			queue = append(queue, n)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		node, _ := g.GetNode(id)
		reads := node.Data.(*Step).Reads()
		for _, parentID := range g.GetParents(id) {
			if needed[parentID] {
				continue
			}
			parent, _ := g.GetNode(parentID)
			ps := parent.Data.(*Step)
			if ps.Kind == KindFormat || writesWorkFor(ps, reads) {
				needed[parentID] = true
				queue = append(queue, parentID)
			}
		}
	}

	out := make([]string, 0, len(needed))
	for _, n := range g.GetAllNodes() {
		if needed[n.ID] {
			out = append(out, n.ID)
		}
	}
	return out, nil
}

func writesWorkFor(s *Step, reads []string) bool {
	for _, out := range s.Writes() {
		if !isWork(out) {
			continue
		}
		for _, in := range reads {
			if in == out {
				return true
			}
		}
	}
	return false
}
