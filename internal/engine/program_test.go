package engine

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapstep/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProgram(t *testing.T) {
	src := `
name: report
format_files: [formats.yaml]
formats:
  grade:
    - {low: 90, high: high, label: A}
steps:
  - data: scored
    set: raw.exams
    script: scripts/score.star
    keep: [id, score]
    params: {pass: 50}
  - proc: SORT
    data: scored
    by: [descending, score]
    nodupkey: true
  - name: overview
    proc: means
    data: scored
    var: score
    stats: [mean, "max"]
  - proc: freq
    data: scored
    out: counts
    tables: [grade]
    missing: true
  - proc: print
    data: scored
    obs: "5"
`
	p, err := ParseProgram(strings.NewReader(src), "/work/project")
	require.NoError(t, err)

	assert.Equal(t, "report", p.Name)
	assert.Equal(t, []string{"formats.yaml"}, p.FormatFiles)
	assert.Contains(t, string(p.Formats), "grade:")
	require.Len(t, p.Steps, 5)

	data := p.Steps[0]
	assert.Equal(t, "data_scored", data.Name)
	assert.Equal(t, KindData, data.Kind)
	assert.Equal(t, "raw.exams", data.Data.Set)
	assert.Equal(t, []string{"id", "score"}, data.Data.Keep)
	assert.Equal(t, map[string]any{"pass": 50}, data.Data.Params)
	assert.Equal(t, []string{"raw.exams"}, data.Reads())
	assert.Equal(t, []string{"work.scored"}, data.Writes())
	assert.Equal(t, filepath.Join("/work/project", "scripts/score.star"), p.resolvePath(data.Data.Script))

	sort := p.Steps[1]
	assert.Equal(t, KindSort, sort.Kind)
	assert.Equal(t, "sort_scored", sort.Name)
	assert.True(t, sort.Sort.NoDupKey)
	assert.Equal(t, []string{"work.scored"}, sort.Writes())

	means, ok := p.Step("overview")
	require.True(t, ok)
	assert.Equal(t, []string{"score"}, means.Means.Var, "a scalar is taken as a one-element list")
	assert.Empty(t, means.Writes())

	freq := p.Steps[3]
	assert.True(t, freq.Freq.Missing)
	assert.Equal(t, []string{"work.counts"}, freq.Writes())

	assert.Equal(t, 5, p.Steps[4].Print.Obs)
	assert.Equal(t, "/abs/x.star", p.resolvePath("/abs/x.star"))
}

func TestParseProgram_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{"empty", "", "program is empty"},
		{"not yaml", "steps: [", "failed to parse program"},
		{"no kind", "steps:\n  - by: [x]\n", "step 1: step needs either data or proc"},
		{"unknown proc", "steps:\n  - proc: tabulate\n    data: x\n", `unknown proc "tabulate"`},
		{"unknown key", "steps:\n  - proc: sort\n    data: x\n    by: [a]\n    descending: true\n", "descending"},
		{"data without code", "steps:\n  - data: x\n", "exactly one of script or code"},
		{"data with both", "steps:\n  - data: x\n    code: pass\n    script: a.star\n", "exactly one of script or code"},
		{"sort without by", "steps:\n  - proc: sort\n    data: x\n", "sort: data and by are required"},
		{"freq without tables", "steps:\n  - proc: freq\n    data: x\n", "freq: data and tables are required"},
		{"empty format", "steps:\n  - proc: format\n", "format: file or formats is required"},
		{"bad name", "steps:\n  - name: [a]\n    data: x\n    code: pass\n", "name must be a string"},
		{
			"duplicate explicit name",
			"steps:\n  - name: a\n    data: x\n    code: pass\n  - name: a\n    data: y\n    code: pass\n",
			`step 2: duplicate step name "a"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProgram(strings.NewReader(tt.src), "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseProgram_DefaultNameCollision(t *testing.T) {
	src := `
steps:
  - data: x
    code: row.a = 1
  - proc: print
    data: x
  - proc: print
    data: x
    obs: 1
`
	p, err := ParseProgram(strings.NewReader(src), "")
	require.NoError(t, err)
	var names []string
	for _, s := range p.Steps {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"data_x", "print_x", "print_x_3"}, names)
}

func TestFreqOutputs(t *testing.T) {
	tests := []struct {
		name string
		step FreqStep
		want []string
	}{
		{"no output", FreqStep{Tables: []string{"a"}}, nil},
		{"single table", FreqStep{Out: "lib.Counts", Tables: []string{"a"}}, []string{"lib.counts"}},
		{"several tables", FreqStep{Out: "c", Tables: []string{"a", "b"}}, []string{"work.c_a", "work.c_b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, freqOutputs(&tt.step))
		})
	}
}

func TestQualify(t *testing.T) {
	tests := map[string]string{
		"people":      "work.people",
		"LIB.People":  "lib.people",
		" work.a ":    "work.a",
		"Raw.Exams_1": "raw.exams_1",
	}
	for in, want := range tests {
		assert.Equal(t, want, Qualify(in), in)
	}
}

func TestLoadProgram(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "nightly.yaml", "steps:\n  - data: a\n    code: row.x = 1\n")

	p, err := LoadProgram(path)
	require.NoError(t, err)
	assert.Equal(t, "nightly", p.Name)
	assert.Equal(t, dir, p.Dir)

	_, err = LoadProgram(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "failed to open program")
}

func TestBuildGraph(t *testing.T) {
	src := `
steps:
  - data: a
    set: lib.raw
    code: pass
  - proc: format
    formats:
      f:
        - {other: true, label: x}
  - proc: sort
    data: a
    by: [x]
  - data: b
    set: a
    code: pass
  - proc: print
    data: b
  - proc: means
    data: lib.other
`
	p, err := ParseProgram(strings.NewReader(src), "")
	require.NoError(t, err)

	g, err := buildGraph(p)
	require.NoError(t, err)
	assert.Equal(t, 6, g.NodeCount())
	assert.Empty(t, g.GetParents("data_a"))
	assert.Equal(t, []string{"data_a"}, g.GetParents("sort_a"))
	assert.Equal(t, []string{"format", "sort_a"}, g.GetParents("data_b"), "reads the sorted replacement of a")
	assert.Equal(t, []string{"format", "data_b"}, g.GetParents("print_b"))
	assert.Empty(t, g.GetParents("means_other"))

	selected, err := selectSteps(g, []string{"print_b"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"data_a", "format", "sort_a", "data_b", "print_b"}, selected)

	selected, err = selectSteps(g, []string{"means_other"}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"means_other"}, selected)
}
