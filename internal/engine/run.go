package engine

// run.go - Execution orchestration for running programs

import (
	"context"
	"errors"
	"fmt"

	"github.com/leapstack-labs/leapstep/internal/dag"
	starctx "github.com/leapstack-labs/leapstep/internal/starlark"
	"github.com/leapstack-labs/leapstep/pkg/core"
)

// Report is the result of a program run.
type Report struct {
	Run   *core.Run
	Steps []*StepOutcome
}

// preparedStep holds a step ready for execution after it compiled.
type preparedStep struct {
	step    *Step
	prog    *starctx.Program
	stepRun *core.StepRun
}

// Run executes every step in dependency order using a two-phase approach:
// Phase 1: Compile all DATA step scripts (fail fast if any fail)
// Phase 2: Execute the steps, stopping at the first failure
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	if e.program == nil {
		return nil, fmt.Errorf("no program loaded")
	}
	e.logger.Info("starting run", "program", e.program.Name, "environment", e.cfg.Environment)
	return e.run(ctx, e.graph)
}

// RunSelected executes only the named steps, plus their downstream
// dependents when downstream is set. Upstream steps that rebuild work
// datasets or formats the selection relies on are always included.
func (e *Engine) RunSelected(ctx context.Context, names []string, downstream bool) (*Report, error) {
	if e.program == nil {
		return nil, fmt.Errorf("no program loaded")
	}
	e.logger.Info("starting selected run", "program", e.program.Name, "steps", names, "include_downstream", downstream)

	selected, err := selectSteps(e.graph, names, downstream)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, e.graph.Subgraph(selected))
}

func (e *Engine) run(ctx context.Context, g *dag.Graph) (*Report, error) {
	run, err := e.store.CreateRun(e.cfg.Environment, e.program.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	report := &Report{Run: run}

	e.logger.Debug("created run", "run_id", run.ID)

	sorted, err := g.TopologicalSort()
	if err != nil {
		_ = e.store.CompleteRun(run.ID, core.RunStatusFailed, fmt.Sprintf("dependency sort failed: %v", err))
		report.Run, _ = e.store.GetRun(run.ID)
		return report, err
	}

	// Phase 1
	prepared, compileErrors := e.prepareSteps(run.ID, sorted)
	if len(compileErrors) > 0 {
		for _, p := range prepared {
			_ = e.store.CompleteStepRun(p.stepRun.ID, core.StepRunStatusSkipped,
				core.StepResult{Error: "run aborted: other steps failed to compile"})
		}

		errMsg := fmt.Sprintf("%d step(s) failed to compile", len(compileErrors))
		_ = e.store.CompleteRun(run.ID, core.RunStatusFailed, errMsg)

		e.logger.Error("run failed during compilation", "run_id", run.ID, "compile_errors", len(compileErrors))
		report.Run, _ = e.store.GetRun(run.ID)
		return report, errors.Join(compileErrors...)
	}

	// Phase 2
	report.Steps, err = e.executeSteps(ctx, prepared)

	switch {
	case err != nil && ctx.Err() != nil:
		e.logger.Info("run cancelled", "run_id", run.ID)
		_ = e.store.CompleteRun(run.ID, core.RunStatusCancelled, err.Error())
	case err != nil:
		e.logger.Info("run failed", "run_id", run.ID, "error", err.Error())
		_ = e.store.CompleteRun(run.ID, core.RunStatusFailed, err.Error())
	default:
		e.logger.Info("run completed", "run_id", run.ID, "steps", len(report.Steps))
		_ = e.store.CompleteRun(run.ID, core.RunStatusCompleted, "")
	}

	report.Run, _ = e.store.GetRun(run.ID)
	return report, err
}

// prepareSteps compiles DATA step scripts and records a pending step run
// for every step.
func (e *Engine) prepareSteps(runID string, sorted []*dag.Node) ([]preparedStep, []error) {
	var prepared []preparedStep
	var compileErrors []error

	for _, node := range sorted {
		s := node.Data.(*Step)

		stepRun := &core.StepRun{
			RunID:    runID,
			StepName: s.Name,
			StepKind: string(s.Kind),
			Status:   core.StepRunStatusPending,
		}
		if err := e.store.RecordStepRun(stepRun); err != nil {
			compileErrors = append(compileErrors, fmt.Errorf("step %s: failed to record step run: %w", s.Name, err))
			continue
		}

		var prog *starctx.Program
		if s.Kind == KindData {
			var err error
			if prog, err = e.compile(s); err != nil {
				_ = e.store.CompleteStepRun(stepRun.ID, core.StepRunStatusFailed, core.StepResult{Error: err.Error()})
				compileErrors = append(compileErrors, fmt.Errorf("step %s: %w", s.Name, err))
				continue
			}
			e.logger.Debug("step compiled", "step", s.Name)
		}

		prepared = append(prepared, preparedStep{step: s, prog: prog, stepRun: stepRun})
	}
	return prepared, compileErrors
}

// executeSteps runs prepared steps in order. After a failure the remaining
// steps are recorded as skipped.
func (e *Engine) executeSteps(ctx context.Context, prepared []preparedStep) ([]*StepOutcome, error) {
	var outcomes []*StepOutcome

	for i, p := range prepared {
		if err := ctx.Err(); err != nil {
			e.skipRemaining(prepared[i:], "skipped: run cancelled")
			return outcomes, err
		}

		outcome, err := e.execStep(ctx, p.step, p.prog)
		outcomes = append(outcomes, outcome)

		result := core.StepResult{
			RowsIn:      int64(outcome.RowsIn),
			RowsOut:     int64(outcome.RowsOut),
			ExecutionMS: outcome.Duration.Milliseconds(),
		}
		if err != nil {
			result.Error = err.Error()
			result.ErrorRow = core.RowOf(err)
			_ = e.store.CompleteStepRun(p.stepRun.ID, core.StepRunStatusFailed, result)
			e.skipRemaining(prepared[i+1:], fmt.Sprintf("skipped: upstream step %s failed", p.step.Name))
			return outcomes, err
		}
		_ = e.store.CompleteStepRun(p.stepRun.ID, core.StepRunStatusSuccess, result)
	}
	return outcomes, nil
}

func (e *Engine) skipRemaining(rest []preparedStep, reason string) {
	for _, p := range rest {
		_ = e.store.CompleteStepRun(p.stepRun.ID, core.StepRunStatusSkipped, core.StepResult{Error: reason})
	}
}
