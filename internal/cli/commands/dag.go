package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapstep/internal/cli/output"
	"github.com/leapstack-labs/leapstep/internal/engine"
	"github.com/spf13/cobra"
)

// GraphQuerier provides read-only access to DAG structure.
type GraphQuerier interface {
	GetParents(string) []string
	GetChildren(string) []string
	GetRoots() []string
	GetLeaves() []string
	NodeCount() int
	EdgeCount() int
}

// NewDAGCommand creates the dag command.
func NewDAGCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dag",
		Short: "Show the dependency graph",
		Long: `Display the dependency graph of the program's steps, grouped by level.

A step depends on the steps that last wrote the work datasets it reads and
on earlier format steps. Library datasets do not create edges. During a
run, steps still execute in program order.`,
		Example: `  # Show the DAG
  leapstep dag

  # Output as JSON
  leapstep dag --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDAG(cmd)
		},
	}

	return cmd
}

type dagOutput struct {
	Levels     []dagLevel `json:"levels"`
	Roots      []string   `json:"roots"`
	Leaves     []string   `json:"leaves"`
	TotalSteps int        `json:"total_steps"`
	TotalEdges int        `json:"total_edges"`
}

type dagLevel struct {
	Level int       `json:"level"`
	Steps []dagNode `json:"steps"`
}

type dagNode struct {
	Name      string   `json:"name"`
	Kind      string   `json:"kind"`
	Reads     []string `json:"reads,omitempty"`
	Writes    []string `json:"writes,omitempty"`
	DependsOn []string `json:"depends_on"`
	UsedBy    []string `json:"used_by"`
}

func runDAG(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := cmdCtx.RequireProgram(); err != nil {
		return err
	}
	graph := cmdCtx.Engine.Graph()
	levels, err := graph.GetExecutionLevels()
	if err != nil {
		return fmt.Errorf("failed to get execution levels: %w", err)
	}

	view := buildDAGView(cmdCtx.Engine.Program(), graph, levels)
	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(view)
	case output.ModeMarkdown:
		dagMarkdown(r, view)
	default:
		dagText(r, view)
	}
	return nil
}

func buildDAGView(prog *engine.Program, graph GraphQuerier, levels [][]string) dagOutput {
	out := dagOutput{
		Levels:     make([]dagLevel, 0, len(levels)),
		Roots:      graph.GetRoots(),
		Leaves:     graph.GetLeaves(),
		TotalSteps: graph.NodeCount(),
		TotalEdges: graph.EdgeCount(),
	}
	for i, level := range levels {
		l := dagLevel{Level: i, Steps: make([]dagNode, 0, len(level))}
		for _, name := range level {
			n := dagNode{
				Name:      name,
				DependsOn: graph.GetParents(name),
				UsedBy:    graph.GetChildren(name),
			}
			if s, ok := prog.Step(name); ok {
				n.Kind = string(s.Kind)
				n.Reads = s.Reads()
				n.Writes = s.Writes()
			}
			l.Steps = append(l.Steps, n)
		}
		out.Levels = append(out.Levels, l)
	}
	return out
}

func dagText(r *output.Renderer, view dagOutput) {
	styles := r.Styles()
	r.Header(1, "Dependency Graph")

	for _, level := range view.Levels {
		r.Println(styles.Header2.Render(fmt.Sprintf("Level %d:", level.Level)))
		for _, n := range level.Steps {
			r.Printf("  %s %s\n", styles.Bold.Render(n.Name), styles.Muted.Render(n.Kind))
			if len(n.Reads) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("reads:"), strings.Join(n.Reads, ", "))
			}
			if len(n.Writes) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("writes:"), strings.Join(n.Writes, ", "))
			}
			if len(n.DependsOn) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("depends on:"), strings.Join(n.DependsOn, ", "))
			}
		}
		r.Println()
	}

	r.Println(styles.Muted.Render(fmt.Sprintf("Total: %d steps, %d dependencies", view.TotalSteps, view.TotalEdges)))
}

func dagMarkdown(r *output.Renderer, view dagOutput) {
	r.Println(output.FormatHeader(1, "Dependency Graph"))
	r.Println()

	for _, level := range view.Levels {
		name := fmt.Sprintf("Level %d", level.Level)
		if level.Level == 0 {
			name += " (Roots)"
		}
		r.Println(output.FormatHeader(2, name))
		for _, n := range level.Steps {
			r.Printf("- %s (%s)\n", n.Name, n.Kind)
			if len(n.Reads) > 0 {
				r.Printf("  - reads: %s\n", strings.Join(n.Reads, ", "))
			}
			if len(n.Writes) > 0 {
				r.Printf("  - writes: %s\n", strings.Join(n.Writes, ", "))
			}
			if len(n.DependsOn) > 0 {
				r.Printf("  - depends on: %s\n", strings.Join(n.DependsOn, ", "))
			}
		}
		r.Println()
	}

	r.Println(output.FormatHeader(2, "Summary"))
	r.Println(output.FormatKeyValue("Total Steps", fmt.Sprint(view.TotalSteps)))
	r.Println(output.FormatKeyValue("Total Dependencies", fmt.Sprint(view.TotalEdges)))
	r.Println(output.FormatKeyValue("Final Steps", strings.Join(view.Leaves, ", ")))
}
