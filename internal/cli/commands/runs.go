package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/leapstep/internal/cli/output"
	"github.com/leapstack-labs/leapstep/pkg/core"
	"github.com/spf13/cobra"
)

// runOutput is the JSON shape of one run.
type runOutput struct {
	ID          string          `json:"id"`
	Environment string          `json:"environment"`
	Program     string          `json:"program"`
	Status      string          `json:"status"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Error       string          `json:"error,omitempty"`
	Steps       []stepRunOutput `json:"steps,omitempty"`
}

type stepRunOutput struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Status      string `json:"status"`
	RowsIn      int64  `json:"rows_in"`
	RowsOut     int64  `json:"rows_out"`
	ExecutionMS int64  `json:"execution_ms"`
	Error       string `json:"error,omitempty"`
	ErrorRow    int    `json:"error_row,omitempty"`
}

func newRunOutput(run *core.Run, steps []*core.StepRun) runOutput {
	out := runOutput{
		ID:          run.ID,
		Environment: run.Environment,
		Program:     run.Program,
		Status:      string(run.Status),
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		Error:       run.Error,
	}
	for _, s := range steps {
		out.Steps = append(out.Steps, stepRunOutput{
			Name:        s.StepName,
			Kind:        s.StepKind,
			Status:      string(s.Status),
			RowsIn:      s.RowsIn,
			RowsOut:     s.RowsOut,
			ExecutionMS: s.ExecutionMS,
			Error:       s.Error,
			ErrorRow:    s.ErrorRow,
		})
	}
	return out
}

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "Show run history",
		Long: `List recent program runs, newest first.

With a run id, show every step of that run with its status, row counts
and the row at which a failing DATA step stopped.`,
		Example: `  # Recent runs
  leapstep runs

  # Steps of one run
  leapstep runs 6f1c2e0a-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if len(args) == 1 {
				return showRun(cmdCtx, args[0])
			}
			return listRuns(cmdCtx, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")
	return cmd
}

func listRuns(cc *CommandContext, limit int) error {
	runs, err := cc.Engine.Store().ListRuns(limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	r := cc.Renderer

	switch r.EffectiveMode() {
	case output.ModeJSON:
		out := make([]runOutput, 0, len(runs))
		for _, run := range runs {
			out = append(out, newRunOutput(run, nil))
		}
		return r.JSON(out)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Runs"))
		r.Println()
		if len(runs) == 0 {
			r.Println("No runs recorded.")
			return nil
		}
		r.Println("| ID | Program | Environment | Status | Started |")
		r.Println("| --- | --- | --- | --- | --- |")
		for _, run := range runs {
			r.Printf("| %s | %s | %s | %s | %s |\n", run.ID, run.Program, run.Environment, run.Status, run.StartedAt.Format(time.RFC3339))
		}
		return nil
	}

	if len(runs) == 0 {
		r.Muted("No runs recorded.")
		return nil
	}
	t := table.NewWriter()
	t.SetOutputMirror(r.Writer())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Program", "Environment", "Status", "Started"})
	for _, run := range runs {
		t.AppendRow(table.Row{run.ID, run.Program, run.Environment, run.Status, run.StartedAt.Local().Format(time.DateTime)})
	}
	t.Render()
	return nil
}

func showRun(cc *CommandContext, id string) error {
	run, err := cc.Engine.Store().GetRun(id)
	if err != nil {
		return fmt.Errorf("run %s: %w", id, err)
	}
	steps, err := cc.Engine.Store().GetStepRunsForRun(id)
	if err != nil {
		return fmt.Errorf("failed to load step runs: %w", err)
	}
	r := cc.Renderer

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(newRunOutput(run, steps))
	}

	r.Header(1, "Run "+run.ID)
	r.StatusLine("Program", run.Program)
	r.StatusLine("Environment", run.Environment)
	r.StatusLine("Status", string(run.Status))
	if run.Error != "" {
		r.StatusLine("Error", run.Error)
	}
	r.Println()

	if r.EffectiveMode() == output.ModeMarkdown {
		r.Println("| Step | Kind | Status | Rows in | Rows out | ms | Error |")
		r.Println("| --- | --- | --- | ---: | ---: | ---: | --- |")
		for _, s := range steps {
			r.Printf("| %s | %s | %s | %d | %d | %d | %s |\n", s.StepName, s.StepKind, s.Status, s.RowsIn, s.RowsOut, s.ExecutionMS, stepError(s))
		}
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.Writer())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Step", "Kind", "Status", "Rows in", "Rows out", "ms", "Error"})
	for _, s := range steps {
		t.AppendRow(table.Row{s.StepName, s.StepKind, s.Status, s.RowsIn, s.RowsOut, s.ExecutionMS, stepError(s)})
	}
	t.Render()
	return nil
}

func stepError(s *core.StepRun) string {
	if s.ErrorRow > 0 {
		return fmt.Sprintf("row %d: %s", s.ErrorRow, s.Error)
	}
	return s.Error
}
