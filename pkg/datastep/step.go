// Package datastep runs DATA steps: the per-row reset, execute, retain and
// emit loop over an input dataset, with the retain ledger, array index and
// working row scoped to one run.
package datastep

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leapstep/pkg/array"
	"github.com/leapstack-labs/leapstep/pkg/core"
	"github.com/leapstack-labs/leapstep/pkg/dataset"
	"github.com/leapstack-labs/leapstep/pkg/format"
	"github.com/leapstack-labs/leapstep/pkg/retain"
)

// Program is the statement executor invoked once per iteration.
type Program interface {
	Execute(ctx context.Context, s *Session) error
}

// ProgramFunc adapts a function to Program.
type ProgramFunc func(ctx context.Context, s *Session) error

// Execute calls f.
func (f ProgramFunc) Execute(ctx context.Context, s *Session) error { return f(ctx, s) }

// Config configures a Step.
type Config struct {
	// Name of the output dataset. Defaults to the input's name, then "data".
	Name string
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
	// Formats serves Session.Render. Nil means no formats are visible.
	Formats *format.Catalog
	// MaxIterations aborts the step once exceeded. Zero disables the limit.
	MaxIterations int
	// Timeout bounds the wall-clock time of a run. Zero disables it.
	Timeout time.Duration
	// Keep and Drop project the output dataset.
	Keep []string
	Drop []string
}

// Result is the outcome of a run. On error it still carries every row
// emitted before the failure.
type Result struct {
	Output     *dataset.Dataset
	Iterations int
	Emitted    int
	Stopped    bool
	// Warnings are non-fatal diagnostics such as surplus retain values.
	Warnings []error
	// Log holds PUT output in order.
	Log []string
}

// Step executes DATA steps. A Step holds no per-run state and may be
// reused; each Run builds its own ledger, array index and working row.
type Step struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Step.
func New(cfg Config) *Step {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Step{cfg: cfg, logger: logger}
}

func (st *Step) outputName(input *dataset.Dataset) string {
	switch {
	case st.cfg.Name != "":
		return st.cfg.Name
	case input != nil && input.Name != "":
		return input.Name
	}
	return "data"
}

// Run drives prog over input. A nil input runs a single iteration with an
// empty catalog; an empty input runs none. The input is never modified.
func (st *Step) Run(ctx context.Context, input *dataset.Dataset, prog Program) (*Result, error) {
	if st.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, st.cfg.Timeout)
		defer cancel()
	}

	name := st.outputName(input)
	cat := dataset.MustCatalog()
	iterations := 1
	if input != nil {
		cat = input.Catalog.Clone()
		iterations = input.Len()
	}

	out := dataset.New(name, cat)
	res := &Result{Output: out}
	s := &Session{
		step:   st,
		res:    res,
		out:    out,
		row:    dataset.NewRow(cat),
		ledger: retain.NewLedger(),
		arrays: array.NewIndex(),
	}

	st.logger.Debug("starting data step", "output", name, "iterations", iterations)
	started := time.Now()

	for i := 0; i < iterations; i++ {
		if err := st.checkBoundary(ctx, name, i); err != nil {
			return st.finish(res, core.WithRow(err, i+1))
		}

		s.begin(i + 1)
		if input != nil {
			if err := s.load(input.Rows[i]); err != nil {
				return st.finish(res, core.WithRow(err, i+1))
			}
		}

		res.Iterations++
		if err := prog.Execute(ctx, s); err != nil {
			st.logger.Debug("data step aborted", "output", name, "row", i+1, "error", err)
			return st.finish(res, core.WithRow(err, i+1))
		}

		if err := s.ledger.AfterIteration(s.row); err != nil {
			return st.finish(res, core.WithRow(err, i+1))
		}
		if !s.deleted && !s.explicitOutput {
			if err := s.emit(); err != nil {
				return st.finish(res, core.WithRow(err, i+1))
			}
		}
		if s.stopped {
			res.Stopped = true
			break
		}
	}

	st.logger.Debug("data step completed", "output", name,
		"iterations", res.Iterations, "emitted", res.Emitted, "duration", time.Since(started))
	return st.finish(res, nil)
}

func (st *Step) checkBoundary(ctx context.Context, name string, i int) error {
	if err := ctx.Err(); err != nil {
		msg := "cancelled"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "timed out"
		}
		return &core.Error{Kind: core.KindCancelled, Op: "datastep.run", Name: name, Msg: msg, Err: err}
	}
	if st.cfg.MaxIterations > 0 && i >= st.cfg.MaxIterations {
		return core.Errorf(core.KindCancelled, "datastep.run", name, "iteration limit %d reached", st.cfg.MaxIterations)
	}
	return nil
}

// finish pads rows emitted before late variables were created and applies
// keep/drop. The run error, if any, is returned unchanged.
func (st *Step) finish(res *Result, runErr error) (*Result, error) {
	res.Output.Normalize()
	projected, err := res.Output.Project(st.cfg.Keep, st.cfg.Drop)
	if err != nil {
		if runErr != nil {
			return res, runErr
		}
		return res, err
	}
	res.Output = projected
	return res, runErr
}
