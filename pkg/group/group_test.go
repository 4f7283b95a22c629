package group

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leapstack-labs/leapstep/pkg/core"
	"github.com/leapstack-labs/leapstep/pkg/dataset"
	"github.com/leapstack-labs/leapstep/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records(t *testing.T, vars []dataset.Variable, rows ...[]any) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.FromRecords("in", vars, rows)
	require.NoError(t, err)
	return ds
}

// plain flattens a dataset to Go values for comparison.
func plain(ds *dataset.Dataset) [][]any {
	out := make([][]any, ds.Len())
	for i, r := range ds.Rows {
		for _, v := range r.Values() {
			out[i] = append(out[i], v.Any())
		}
	}
	return out
}

func TestSort_StableTies(t *testing.T) {
	ds := records(t, []dataset.Variable{dataset.Char("k", 1), dataset.Num("n")},
		[]any{"A", 2}, []any{"A", 1}, []any{"B", 1})

	out, err := Sort(ds, []SortKey{Asc("k")}, false)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"A", 2.0}, {"A", 1.0}, {"B", 1.0}}, plain(out))
}

func TestSort_Dedup(t *testing.T) {
	ds := records(t, []dataset.Variable{dataset.Char("k", 1), dataset.Num("n")},
		[]any{"A", 1}, []any{"A", 1}, []any{"A", 2})

	out, err := Sort(ds, []SortKey{Asc("k"), Asc("n")}, true)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"A", 1.0}, {"A", 2.0}}, plain(out))
	assert.Equal(t, 3, ds.Len(), "input is untouched")
}

func TestSort_DedupKeepsFirstOfKey(t *testing.T) {
	ds := records(t, []dataset.Variable{dataset.Char("k", 1), dataset.Num("n")},
		[]any{"B", 9}, []any{"A", 3}, []any{"A", 1}, []any{"B", 1})

	out, err := Sort(ds, []SortKey{Asc("k")}, true)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"A", 3.0}, {"B", 9.0}}, plain(out))
}

func TestSort_MultiKeyDirections(t *testing.T) {
	ds := records(t, []dataset.Variable{dataset.Char("dept", 2), dataset.Num("sal")},
		[]any{"HR", 10}, []any{"IT", 5}, []any{"HR", 30}, []any{"IT", 7}, []any{"HR", nil})

	out, err := Sort(ds, []SortKey{Asc("dept"), Desc("sal")}, false)
	require.NoError(t, err)
	want := [][]any{{"HR", nil}, {"HR", 30.0}, {"HR", 10.0}, {"IT", 7.0}, {"IT", 5.0}}
	if diff := cmp.Diff(want, plain(out)); diff != "" {
		t.Errorf("sorted rows mismatch (-want +got):\n%s", diff)
	}
}

func TestSort_MissingFirstRegardlessOfDirection(t *testing.T) {
	ds := records(t, []dataset.Variable{dataset.Num("x")},
		[]any{3}, []any{nil}, []any{1})

	for _, key := range []SortKey{Asc("x"), Desc("x")} {
		out, err := Sort(ds, []SortKey{key}, false)
		require.NoError(t, err)
		assert.Nil(t, plain(out)[0][0], "descending=%v", key.Descending)
	}
}

func TestSort_UnknownKey(t *testing.T) {
	ds := records(t, []dataset.Variable{dataset.Num("x")}, []any{1})
	_, err := Sort(ds, []SortKey{Asc("y")}, false)
	assert.True(t, core.IsKind(err, core.KindUnknownVariable))
}

func TestParseSortKeys(t *testing.T) {
	keys, err := ParseSortKeys([]string{"dept", "descending", "sal", "-age"})
	require.NoError(t, err)
	assert.Equal(t, []SortKey{Asc("dept"), Desc("sal"), Desc("age")}, keys)

	_, err = ParseSortKeys([]string{"dept", "descending"})
	assert.Error(t, err)
}

func TestAggregate_EndToEnd(t *testing.T) {
	ds := records(t, []dataset.Variable{dataset.Char("Dept", 2), dataset.Num("Sal")},
		[]any{"HR", 50000}, []any{"HR", 55000}, []any{"IT", 60000})

	out, err := Aggregate(ds, []string{"Dept"}, []Stat{N, Mean}, []string{"Sal"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Dept", "Sal_N", "Sal_Mean"}, out.Catalog.Names())
	assert.Equal(t, [][]any{{"HR", 2.0, 52500.0}, {"IT", 1.0, 60000.0}}, plain(out))
}

func TestAggregate_MissingHandling(t *testing.T) {
	ds := records(t, []dataset.Variable{dataset.Num("x")}, []any{10}, []any{nil}, []any{30})

	out, err := Aggregate(ds, nil, []Stat{Mean, N, NonMissing, NMiss, Sum, Min, Max, Range, Median}, []string{"x"})
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, []any{20.0, 3.0, 2.0, 1.0, 40.0, 10.0, 30.0, 20.0, 20.0}, plain(out)[0])
}

func TestAggregate_Std(t *testing.T) {
	ds := records(t, []dataset.Variable{dataset.Num("x")},
		[]any{2}, []any{4}, []any{4}, []any{4}, []any{5}, []any{5}, []any{7}, []any{9})

	results, err := NewAggregator(Options{}).Summarize(context.Background(), ds,
		Request{Stats: []Stat{Std, StdPop, Median}, Vars: []string{"x"}})
	require.NoError(t, err)
	require.Len(t, results, 1)

	pop, _ := results[0].Stats["x_StdPop"].Float()
	sample, _ := results[0].Stats["x_Std"].Float()
	med, _ := results[0].Stats["x_Median"].Float()
	assert.InDelta(t, 2.0, pop, 1e-12)
	assert.InDelta(t, 2.138089935299395, sample, 1e-12)
	assert.InDelta(t, 4.5, med, 1e-12)
}

func TestAggregate_StdNeedsTwoValues(t *testing.T) {
	ds := records(t, []dataset.Variable{dataset.Num("x")}, []any{5}, []any{nil})
	out, err := Aggregate(ds, nil, []Stat{Std, StdPop}, []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, []any{nil, 0.0}, plain(out)[0])
}

func TestAggregate_EmptyInput(t *testing.T) {
	ds := records(t, []dataset.Variable{dataset.Char("k", 1), dataset.Num("x")})

	out, err := Aggregate(ds, nil, []Stat{N, Mean}, []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, [][]any{{0.0, nil}}, plain(out))

	out, err = Aggregate(ds, []string{"k"}, []Stat{N}, []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
}

func TestAggregate_FirstSeenOrderAndFreq(t *testing.T) {
	ds := records(t, []dataset.Variable{dataset.Char("k", 1), dataset.Num("x")},
		[]any{"b", 1}, []any{"a", 2}, []any{"b", 3}, []any{nil, 4}, []any{"a", 5})

	out, err := NewAggregator(Options{Concurrency: 4}).Aggregate(context.Background(), ds,
		Request{Keys: []string{"k"}, Stats: []Stat{Sum}, Vars: []string{"x"}, Freq: true, Name: "sums"})
	require.NoError(t, err)
	assert.Equal(t, "sums", out.Name)
	assert.Equal(t, []string{"k", FreqVar, "x_Sum"}, out.Catalog.Names())
	assert.Equal(t, [][]any{{"b", 2.0, 4.0}, {"a", 2.0, 7.0}, {nil, 1.0, 4.0}}, plain(out))
}

func TestAggregate_Errors(t *testing.T) {
	ds := records(t, []dataset.Variable{dataset.Char("k", 1), dataset.Num("x")}, []any{"a", 1})

	tests := []struct {
		name string
		req  Request
		kind core.Kind
	}{
		{"character var", Request{Stats: []Stat{Mean}, Vars: []string{"k"}}, core.KindTypeError},
		{"unknown var", Request{Stats: []Stat{Mean}, Vars: []string{"y"}}, core.KindUnknownVariable},
		{"unknown key", Request{Keys: []string{"z"}, Stats: []Stat{N}, Vars: []string{"x"}}, core.KindUnknownVariable},
		{"bad stat", Request{Stats: []Stat{Stat(99)}, Vars: []string{"x"}}, core.KindInvalidStatRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAggregator(Options{}).Aggregate(context.Background(), ds, tt.req)
			require.Error(t, err)
			assert.True(t, core.IsKind(err, tt.kind), "got %v", err)
		})
	}
}

func TestAggregate_Cancelled(t *testing.T) {
	ds := records(t, []dataset.Variable{dataset.Num("x")}, []any{1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewAggregator(Options{}).Summarize(ctx, ds, Request{Stats: []Stat{N}, Vars: []string{"x"}})
	assert.True(t, core.IsKind(err, core.KindCancelled))
}

func TestParseStats(t *testing.T) {
	stats, err := ParseStats([]string{"n", "MEAN", "stddev", "nmiss"})
	require.NoError(t, err)
	assert.Equal(t, []Stat{N, Mean, Std, NMiss}, stats)

	stats, err = ParseStats(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultStats, stats)

	_, err = ParseStat("mode")
	assert.True(t, core.IsKind(err, core.KindInvalidStatRequest))
}

func TestGroups_NumericZeroKeys(t *testing.T) {
	ds := records(t, []dataset.Variable{dataset.Num("k")}, []any{0.0}, []any{-0.0}, []any{1})
	groups, err := Groups(ds, []string{"k"})
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, []int{0, 1}, groups[0].Rows)
}

func TestFreq(t *testing.T) {
	ds := records(t, []dataset.Variable{dataset.Char("sex", 1)},
		[]any{"M"}, []any{"F"}, []any{"M"}, []any{nil}, []any{"M"})

	tab, err := Freq(ds, "sex", FreqOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, tab.Total)
	assert.Equal(t, 1, tab.Missing)
	require.Len(t, tab.Levels, 2)
	assert.Equal(t, value.Char("F"), tab.Levels[0].Value)
	assert.Equal(t, 1, tab.Levels[0].Frequency)
	assert.InDelta(t, 25.0, tab.Levels[0].Percent, 1e-9)
	assert.Equal(t, 4, tab.Levels[1].CumFrequency)
	assert.InDelta(t, 100.0, tab.Levels[1].CumPercent, 1e-9)

	tab, err = Freq(ds, "SEX", FreqOptions{IncludeMissing: true})
	require.NoError(t, err)
	assert.Equal(t, 5, tab.Total)
	require.Len(t, tab.Levels, 3)
	assert.True(t, tab.Levels[0].Value.IsMissing())
	assert.InDelta(t, 20.0, tab.Levels[0].Percent, 1e-9)

	out, err := tab.Dataset(ds)
	require.NoError(t, err)
	assert.Equal(t, []string{"sex", "Frequency", "Percent", "CumFrequency", "CumPercent"}, out.Catalog.Names())
	assert.Equal(t, 3, out.Len())
}
