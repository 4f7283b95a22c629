package engine

// steps.go - Execution of individual DATA and PROC steps

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	starctx "github.com/leapstack-labs/leapstep/internal/starlark"
	"github.com/leapstack-labs/leapstep/pkg/dataset"
	"github.com/leapstack-labs/leapstep/pkg/datastep"
	"github.com/leapstack-labs/leapstep/pkg/format"
	"github.com/leapstack-labs/leapstep/pkg/group"
	"github.com/leapstack-labs/leapstep/pkg/value"
	"gopkg.in/yaml.v3"
)

// StepOutcome describes one executed step.
type StepOutcome struct {
	Name    string
	Kind    StepKind
	Outputs []string
	RowsIn  int
	RowsOut int
	// Log holds PUT and print lines from a DATA step.
	Log      []string
	Warnings []error
	Listings []Listing
	Freqs    []*group.FreqTable
	Duration time.Duration
	Err      error
}

// ExecStep runs one step outside any program run. Nothing is recorded in
// the run history.
func (e *Engine) ExecStep(ctx context.Context, s *Step) (*StepOutcome, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	if s.Name == "" {
		s.Name = defaultStepName(s)
	}
	var prog *starctx.Program
	if s.Kind == KindData {
		var err error
		if prog, err = e.compile(s); err != nil {
			return nil, err
		}
	}
	return e.execStep(ctx, s, prog)
}

func (e *Engine) compile(s *Step) (*starctx.Program, error) {
	d := s.Data
	opts := starctx.Options{
		Filename: s.Name + ".star",
		Params:   d.Params,
		MaxSteps: e.cfg.MaxSteps,
		Logger:   e.logger,
	}
	if d.Script == "" {
		return starctx.Compile(d.Code, opts)
	}

	path := d.Script
	if e.program != nil {
		path = e.program.resolvePath(path)
	}
	opts.Filename = filepath.Base(path)
	return starctx.CompileFile(path, opts)
}

func (e *Engine) execStep(ctx context.Context, s *Step, prog *starctx.Program) (*StepOutcome, error) {
	out := &StepOutcome{Name: s.Name, Kind: s.Kind, Outputs: s.Writes()}
	start := time.Now()

	e.logger.Debug("executing step", "step", s.Name, "kind", s.Kind)

	var err error
	switch s.Kind {
	case KindData:
		err = e.execData(ctx, s.Data, prog, out)
	case KindSort:
		err = e.execSort(ctx, s.Sort, out)
	case KindMeans:
		err = e.execMeans(ctx, s.Means, out)
	case KindFreq:
		err = e.execFreq(ctx, s.Freq, out)
	case KindPrint:
		err = e.execPrint(ctx, s.Print, out)
	case KindFormat:
		err = e.execFormat(s.Format, out)
	default:
		err = fmt.Errorf("unknown step kind %q", s.Kind)
	}

	out.Duration = time.Since(start)
	for _, w := range out.Warnings {
		e.logger.Warn("step warning", "step", s.Name, "warning", w.Error())
	}
	if err != nil {
		out.Err = fmt.Errorf("step %s: %w", s.Name, err)
		e.logger.Debug("step failed", "step", s.Name, "error", err)
		return out, out.Err
	}
	e.logger.Debug("step executed", "step", s.Name, "rows_in", out.RowsIn, "rows_out", out.RowsOut, "duration", out.Duration)
	return out, nil
}

func (e *Engine) execData(ctx context.Context, d *DataStep, prog *starctx.Program, out *StepOutcome) error {
	var input *dataset.Dataset
	if d.Set != "" {
		var err error
		if input, err = e.libs.read(ctx, d.Set); err != nil {
			return err
		}
		out.RowsIn = input.Len()
	}

	maxIter := d.MaxIterations
	if maxIter == 0 {
		maxIter = e.cfg.MaxIterations
	}
	_, table := splitName(d.Out)
	res, err := datastep.New(datastep.Config{
		Name:          table,
		Logger:        e.logger,
		Formats:       e.formats,
		MaxIterations: maxIter,
		Timeout:       e.cfg.Timeout,
		Keep:          d.Keep,
		Drop:          d.Drop,
	}).Run(ctx, input, prog)
	if res != nil {
		out.Log = res.Log
		out.Warnings = append(out.Warnings, res.Warnings...)
		if lp, ok := e.cfg.Printer.(LogPrinter); ok && len(res.Log) > 0 {
			lp.PrintLog(out.Name, res.Log)
		}
	}
	if err != nil {
		return err
	}

	out.RowsOut = res.Output.Len()
	return e.libs.write(ctx, d.Out, res.Output)
}

func (e *Engine) execSort(ctx context.Context, s *SortStep, out *StepOutcome) error {
	ds, err := e.libs.read(ctx, s.Input)
	if err != nil {
		return err
	}
	out.RowsIn = ds.Len()

	keys, err := group.ParseSortKeys(strings.Fields(strings.Join(s.By, " ")))
	if err != nil {
		return err
	}
	sorted, err := group.Sort(ds, keys, s.NoDupKey)
	if err != nil {
		return err
	}
	out.RowsOut = sorted.Len()

	target := s.Out
	if target == "" {
		target = s.Input
	}
	return e.libs.write(ctx, target, sorted)
}

func (e *Engine) execMeans(ctx context.Context, m *MeansStep, out *StepOutcome) error {
	ds, err := e.libs.read(ctx, m.Input)
	if err != nil {
		return err
	}
	out.RowsIn = ds.Len()

	stats, err := group.ParseStats(m.Stats)
	if err != nil {
		return err
	}
	vars := m.Var
	if len(vars) == 0 {
		vars = analysisVars(ds.Catalog, m.Class)
	}

	name := tableOf(m.Input) + "_means"
	if m.Out != "" {
		name = tableOf(m.Out)
	}
	agg := group.NewAggregator(group.Options{Concurrency: e.cfg.Concurrency, Logger: e.logger})
	result, err := agg.Aggregate(ctx, ds, group.Request{
		Keys:  m.Class,
		Vars:  vars,
		Stats: stats,
		Freq:  m.Freq,
		Name:  name,
	})
	if err != nil {
		return err
	}
	out.RowsOut = result.Len()

	if m.Out != "" {
		return e.libs.write(ctx, m.Out, result)
	}
	title := m.Title
	if title == "" {
		title = "Summary of " + Qualify(m.Input)
	}
	return e.emitListing(out, Listing{Title: title, Dataset: result})
}

// analysisVars defaults the MEANS variables to every numeric variable that
// is not a class key.
func analysisVars(cat *dataset.Catalog, class []string) []string {
	skip := make(map[string]bool, len(class))
	for _, c := range class {
		skip[dataset.Fold(c)] = true
	}
	var vars []string
	for _, name := range cat.NamesOfKind(value.Numeric) {
		if !skip[dataset.Fold(name)] {
			vars = append(vars, name)
		}
	}
	return vars
}

func (e *Engine) execFreq(ctx context.Context, f *FreqStep, out *StepOutcome) error {
	ds, err := e.libs.read(ctx, f.Input)
	if err != nil {
		return err
	}
	out.RowsIn = ds.Len()

	targets := freqOutputs(f)
	for i, v := range f.Tables {
		t, err := group.Freq(ds, v, group.FreqOptions{IncludeMissing: f.Missing})
		if err != nil {
			return err
		}
		out.Freqs = append(out.Freqs, t)
		if e.cfg.Printer != nil {
			if err := e.cfg.Printer.PrintFreq("Frequencies of "+t.Var, t); err != nil {
				return err
			}
		}
		if len(targets) == 0 {
			continue
		}
		tds, err := t.Dataset(ds)
		if err != nil {
			return err
		}
		out.RowsOut += tds.Len()
		if err := e.libs.write(ctx, targets[i], tds); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) execPrint(ctx context.Context, p *PrintStep, out *StepOutcome) error {
	ds, err := e.libs.read(ctx, p.Input)
	if err != nil {
		return err
	}
	out.RowsIn = ds.Len()

	switch {
	case len(p.Var) > 0:
		if ds, err = ds.Project(p.Var, nil); err != nil {
			return err
		}
	case len(p.Format) > 0:
		ds = ds.Clone()
	}
	if p.Obs > 0 && p.Obs < ds.Len() {
		ds = ds.WithRows(ds.Name, ds.Rows[:p.Obs])
	}
	for v, f := range p.Format {
		if err := ds.Catalog.SetFormat(v, f); err != nil {
			return err
		}
	}
	out.RowsOut = ds.Len()

	title := p.Title
	if title == "" {
		title = Qualify(p.Input)
	}
	return e.emitListing(out, Listing{Title: title, Dataset: ds, Formats: p.Format})
}

func (e *Engine) emitListing(out *StepOutcome, l Listing) error {
	l.Catalog = e.formats
	out.Listings = append(out.Listings, l)
	if e.cfg.Printer != nil {
		return e.cfg.Printer.PrintDataset(l)
	}
	return nil
}

func (e *Engine) execFormat(f *FormatStep, out *StepOutcome) error {
	if f.File != "" {
		path := f.File
		if e.program != nil {
			path = e.program.resolvePath(path)
		}
		if err := e.loadFormatFile(path); err != nil {
			return err
		}
	}
	if len(f.Formats) == 0 {
		return nil
	}

	doc, err := yaml.Marshal(f.Formats)
	if err != nil {
		return fmt.Errorf("formats: %w", err)
	}
	warnings, err := format.LoadYAML(bytes.NewReader(doc), e.formats)
	out.Warnings = append(out.Warnings, warnings...)
	return err
}
