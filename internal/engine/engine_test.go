package engine

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapstep/internal/testutil"
	"github.com/leapstack-labs/leapstep/pkg/core"
	"github.com/leapstack-labs/leapstep/pkg/dataset"
	"github.com/leapstack-labs/leapstep/pkg/format"
	"github.com/leapstack-labs/leapstep/pkg/group"
	"github.com/leapstack-labs/leapstep/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePrinter struct {
	listings []Listing
	freqs    []*group.FreqTable
	logs     map[string][]string
}

func (p *capturePrinter) PrintDataset(l Listing) error {
	p.listings = append(p.listings, l)
	return nil
}

func (p *capturePrinter) PrintFreq(_ string, t *group.FreqTable) error {
	p.freqs = append(p.freqs, t)
	return nil
}

func (p *capturePrinter) PrintLog(step string, lines []string) {
	if p.logs == nil {
		p.logs = make(map[string][]string)
	}
	p.logs[step] = append(p.logs[step], lines...)
}

func peopleVars() []dataset.Variable {
	return []dataset.Variable{dataset.Char("dept", 2), dataset.Char("name", 4), dataset.Num("sal")}
}

// newTestEngine builds an engine over src with a file-backed sqlite library
// called lib holding the people dataset.
func newTestEngine(t *testing.T, src string, people *dataset.Dataset) (*Engine, *capturePrinter) {
	t.Helper()
	dir := t.TempDir()

	var prog *Program
	if src != "" {
		var err error
		prog, err = ParseProgram(strings.NewReader(src), dir)
		require.NoError(t, err)
		prog.Name = "payroll"
	}

	printer := &capturePrinter{}
	e, err := New(Config{
		Program: prog,
		Libraries: map[string]core.LibraryConfig{
			"lib": {Type: "sqlite", Path: filepath.Join(dir, "lib.db")},
		},
		Printer: printer,
		Logger:  testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	if people != nil {
		require.NoError(t, e.WriteDataset(context.Background(), "lib.people", people))
	}
	return e, printer
}

func defaultPeople(t *testing.T) *dataset.Dataset {
	return testutil.NewDataset(t, "people", peopleVars(),
		[]any{"HR", "ann", 100},
		[]any{"IT", "bob", 300},
		[]any{"HR", "cy", 200},
		[]any{"IT", "dee", nil},
	)
}

func floats(t *testing.T, ds *dataset.Dataset, name string) []any {
	t.Helper()
	col, err := ds.Column(name)
	require.NoError(t, err)
	out := make([]any, len(col))
	for i, v := range col {
		if v.IsMissing() {
			out[i] = nil
			continue
		}
		f, _ := v.Float()
		out[i] = f
	}
	return out
}

func strs(t *testing.T, ds *dataset.Dataset, name string) []string {
	t.Helper()
	col, err := ds.Column(name)
	require.NoError(t, err)
	out := make([]string, len(col))
	for i, v := range col {
		out[i] = v.Str()
	}
	return out
}

const payrollProgram = `
steps:
  - data: staff
    set: lib.people
    code: |
      retain("total", init=0)
      if not is_missing(row.sal):
          row.total = row.total + row.sal
      row.bonus = row.sal / 10
  - proc: sort
    data: staff
    out: sorted
    by: [dept, -sal]
  - proc: means
    data: staff
    class: [dept]
    var: [sal]
    stats: [n, sum, mean]
    out: lib.summary
  - proc: freq
    data: staff
    tables: [dept]
  - proc: print
    data: sorted
    var: [name, sal]
    obs: 2
`

func TestEngine_Run(t *testing.T) {
	ctx := context.Background()
	e, printer := newTestEngine(t, payrollProgram, defaultPeople(t))

	report, err := e.Run(ctx)
	require.NoError(t, err)
	require.NotNil(t, report.Run)
	assert.Equal(t, core.RunStatusCompleted, report.Run.Status)
	assert.Equal(t, "payroll", report.Run.Program)
	assert.Equal(t, "dev", report.Run.Environment)

	var names []string
	for _, s := range report.Steps {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"data_staff", "sort_staff", "means_staff", "freq_staff", "print_sorted"}, names)

	staff, err := e.Dataset(ctx, "staff")
	require.NoError(t, err)
	assert.Equal(t, []any{100.0, 400.0, 600.0, 600.0}, floats(t, staff, "total"))
	assert.Equal(t, []any{10.0, 30.0, 20.0, nil}, floats(t, staff, "bonus"))

	sorted, err := e.Dataset(ctx, "work.sorted")
	require.NoError(t, err)
	assert.Equal(t, []string{"cy", "ann", "dee", "bob"}, strs(t, sorted, "name"))

	summary, err := e.Dataset(ctx, "lib.summary")
	require.NoError(t, err)
	assert.Equal(t, []string{"HR", "IT"}, strs(t, summary, "dept"))
	assert.Equal(t, []any{2.0, 2.0}, floats(t, summary, "sal_N"))
	assert.Equal(t, []any{300.0, 300.0}, floats(t, summary, "sal_Sum"))
	assert.Equal(t, []any{150.0, 300.0}, floats(t, summary, "sal_Mean"))

	require.Len(t, printer.freqs, 1)
	assert.Equal(t, "dept", printer.freqs[0].Var)
	require.Len(t, printer.freqs[0].Levels, 2)
	assert.Equal(t, 2, printer.freqs[0].Levels[0].Frequency)

	require.Len(t, printer.listings, 1)
	l := printer.listings[0]
	assert.Equal(t, "work.sorted", l.Title)
	assert.Equal(t, []string{"name", "sal"}, l.Dataset.Catalog.Names())
	assert.Equal(t, []string{"cy", "ann"}, strs(t, l.Dataset, "name"))
	assert.Same(t, e.Formats(), l.Catalog)

	steps, err := e.Store().GetStepRunsForRun(report.Run.ID)
	require.NoError(t, err)
	require.Len(t, steps, 5)
	for _, s := range steps {
		assert.Equal(t, core.StepRunStatusSuccess, s.Status, s.StepName)
	}
	assert.Equal(t, "data", steps[0].StepKind)
	assert.EqualValues(t, 4, steps[0].RowsIn)
	assert.EqualValues(t, 4, steps[0].RowsOut)
}

func TestEngine_RunFailure(t *testing.T) {
	src := `
steps:
  - data: checked
    set: lib.people
    code: |
      if row.name == "bob":
          fail("bad row")
  - proc: print
    data: checked
`
	e, printer := newTestEngine(t, src, defaultPeople(t))

	report, err := e.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step data_checked")
	assert.Contains(t, err.Error(), "bad row")
	assert.Equal(t, 2, core.RowOf(err))

	require.NotNil(t, report)
	assert.Equal(t, core.RunStatusFailed, report.Run.Status)
	assert.Empty(t, printer.listings)

	steps, err := e.Store().GetStepRunsForRun(report.Run.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, core.StepRunStatusFailed, steps[0].Status)
	assert.Equal(t, 2, steps[0].ErrorRow)
	assert.Equal(t, core.StepRunStatusSkipped, steps[1].Status)
	assert.Equal(t, "skipped: upstream step data_checked failed", steps[1].Error)
}

func TestEngine_RunCompileError(t *testing.T) {
	src := `
steps:
  - data: fine
    code: row.x = 1
  - data: broken
    code: "row.x = ("
`
	e, _ := newTestEngine(t, src, nil)

	report, err := e.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step data_broken")
	assert.Equal(t, core.RunStatusFailed, report.Run.Status)
	assert.Equal(t, "1 step(s) failed to compile", report.Run.Error)
	assert.Empty(t, report.Steps)

	_, err = e.Dataset(context.Background(), "fine")
	assert.Error(t, err, "no step runs after a compile failure")

	steps, err := e.Store().GetStepRunsForRun(report.Run.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, core.StepRunStatusSkipped, steps[0].Status)
	assert.Equal(t, core.StepRunStatusFailed, steps[1].Status)
}

func TestEngine_RunCancelled(t *testing.T) {
	src := `
steps:
  - data: a
    code: row.x = 1
`
	e, _ := newTestEngine(t, src, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := e.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, core.RunStatusCancelled, report.Run.Status)
}

func TestEngine_RunSelected(t *testing.T) {
	ctx := context.Background()
	e, printer := newTestEngine(t, payrollProgram, defaultPeople(t))

	report, err := e.RunSelected(ctx, []string{"print_sorted"}, false)
	require.NoError(t, err)

	var names []string
	for _, s := range report.Steps {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"data_staff", "sort_staff", "print_sorted"}, names)
	assert.Len(t, printer.listings, 1)
	assert.Empty(t, printer.freqs)

	report, err = e.RunSelected(ctx, []string{"data_staff"}, true)
	require.NoError(t, err)
	assert.Len(t, report.Steps, 5)

	_, err = e.RunSelected(ctx, []string{"missing"}, false)
	assert.ErrorContains(t, err, `unknown step "missing"`)

	runs, err := e.Store().ListRuns(10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestEngine_Formats(t *testing.T) {
	ctx := context.Background()
	src := `
formats:
  band:
    - {low: low, high: 150, high_exclusive: true, label: Low}
    - {other: true, label: High}
steps:
  - data: banded
    set: lib.people
    code: row.level = render("band.", row.sal)
  - proc: format
    formats:
      dept:
        - {value: HR, label: People}
  - proc: print
    data: banded
    format: {dept: dept.}
`
	people := testutil.NewDataset(t, "people", peopleVars(),
		[]any{"HR", "ann", 100},
		[]any{"IT", "bob", 300},
	)
	e, printer := newTestEngine(t, src, people)

	_, err := e.Run(ctx)
	require.NoError(t, err)

	banded, err := e.Dataset(ctx, "banded")
	require.NoError(t, err)
	assert.Equal(t, []string{"Low", "High"}, strs(t, banded, "level"))

	assert.ElementsMatch(t, []string{"band", "dept"}, e.Formats().Names())
	require.Len(t, printer.listings, 1)
	assert.Equal(t, map[string]string{"dept": "dept."}, printer.listings[0].Formats)

	label, err := printer.listings[0].Catalog.Render("dept.", value.Char("HR"))
	require.NoError(t, err)
	assert.Equal(t, "People", label)

	// The stored dataset keeps its own catalog.
	v, err := banded.Catalog.Get("dept")
	require.NoError(t, err)
	assert.Empty(t, v.Format)
}

func TestEngine_ExecStep(t *testing.T) {
	ctx := context.Background()
	e, printer := newTestEngine(t, "", defaultPeople(t))

	out, err := e.ExecStep(ctx, &Step{Kind: KindSort, Sort: &SortStep{Input: "lib.people", Out: "by_sal", By: []string{"sal"}}})
	require.NoError(t, err)
	assert.Equal(t, "sort_people", out.Name)
	assert.Equal(t, []string{"work.by_sal"}, out.Outputs)

	sorted, err := e.Dataset(ctx, "by_sal")
	require.NoError(t, err)
	assert.Equal(t, []string{"dee", "ann", "cy", "bob"}, strs(t, sorted, "name"))

	out, err = e.ExecStep(ctx, &Step{Kind: KindMeans, Means: &MeansStep{Input: "lib.people", Stats: []string{"max"}}})
	require.NoError(t, err)
	require.Len(t, out.Listings, 1)
	assert.Equal(t, "Summary of lib.people", out.Listings[0].Title)
	assert.Equal(t, []string{"sal_Max"}, out.Listings[0].Dataset.Catalog.Names())
	assert.Len(t, printer.listings, 1)

	out, err = e.ExecStep(ctx, &Step{Kind: KindFreq, Freq: &FreqStep{Input: "lib.people", Out: "counts", Tables: []string{"dept", "name"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"work.counts_dept", "work.counts_name"}, out.Outputs)
	tables, err := e.ListDatasets(ctx, WorkLibrary)
	require.NoError(t, err)
	assert.Equal(t, []string{"by_sal", "counts_dept", "counts_name"}, tables)

	out, err = e.ExecStep(ctx, &Step{Kind: KindData, Data: &DataStep{Out: "echo", Set: "lib.people", Code: "print(row.name)"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"ann", "bob", "cy", "dee"}, out.Log)
	assert.Equal(t, out.Log, printer.logs["data_echo"])

	_, err = e.ExecStep(ctx, &Step{Kind: KindPrint, Print: &PrintStep{}})
	assert.ErrorContains(t, err, "print: data is required")

	_, err = e.Run(ctx)
	assert.ErrorContains(t, err, "no program loaded")
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "reserved library",
			cfg:     Config{Libraries: map[string]core.LibraryConfig{"WORK": {Type: "sqlite"}}},
			wantErr: "reserved",
		},
		{
			name:    "unknown library type",
			cfg:     Config{Libraries: map[string]core.LibraryConfig{"lib": {Type: "oracle"}}},
			wantErr: "oracle",
		},
		{
			name: "work dataset read before creation",
			cfg: Config{Program: &Program{Steps: []*Step{
				{Name: "show", Kind: KindPrint, Print: &PrintStep{Input: "later"}},
				{Name: "make", Kind: KindData, Data: &DataStep{Out: "later", Code: "pass"}},
			}}},
			wantErr: "step show reads work.later before step make creates it",
		},
		{
			name: "work dataset never created",
			cfg: Config{Program: &Program{Steps: []*Step{
				{Name: "show", Kind: KindPrint, Print: &PrintStep{Input: "ghost"}},
			}}},
			wantErr: "which no step creates",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestEngine_UnknownLibrary(t *testing.T) {
	e, _ := newTestEngine(t, "", nil)
	_, err := e.Dataset(context.Background(), "nope.table")
	assert.ErrorContains(t, err, `unknown library "nope"`)
	assert.Equal(t, []string{"lib", "work"}, e.Libraries())
}

func TestEngine_OverlapWarningsLogged(t *testing.T) {
	src := `
formats:
  f:
    - {low: 0, high: 10, label: a}
    - {low: 5, high: 15, label: b}
steps:
  - data: a
    code: row.x = 1
`
	prog, err := ParseProgram(strings.NewReader(src), t.TempDir())
	require.NoError(t, err)

	logger, rec := testutil.NewRecordingLogger(t)
	e, err := New(Config{Program: prog, Overlap: format.OverlapWarn, Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	require.True(t, rec.Has(slog.LevelWarn, "format warning"))
	for _, r := range rec.Records() {
		if r.Message == "format warning" {
			assert.Equal(t, "program formats", r.Attrs["source"])
			assert.Contains(t, r.Attrs["warning"], "overlaps")
		}
	}

	_, err = New(Config{Program: prog, Overlap: format.OverlapReject})
	assert.ErrorContains(t, err, "overlaps")
}
