package group

import (
	"fmt"
	"slices"

	"github.com/leapstack-labs/leapstep/pkg/core"
	"github.com/leapstack-labs/leapstep/pkg/dataset"
	"github.com/leapstack-labs/leapstep/pkg/value"
)

// Level is one row of a frequency table.
type Level struct {
	Value        value.Value
	Frequency    int
	Percent      float64
	CumFrequency int
	CumPercent   float64
}

// FreqTable is a one-way frequency table.
type FreqTable struct {
	Var    string
	Levels []Level
	// Total is the count percentages are taken over.
	Total int
	// Missing counts missing values left out of the table.
	Missing int
}

// FreqOptions configures Freq.
type FreqOptions struct {
	// IncludeMissing treats missing as a level counted in percentages.
	IncludeMissing bool
}

// Freq tabulates the distinct values of variable in ascending order,
// missing first when included.
func Freq(ds *dataset.Dataset, variable string, opts FreqOptions) (*FreqTable, error) {
	p, ok := ds.Catalog.Lookup(variable)
	if !ok {
		return nil, &core.Error{Kind: core.KindUnknownVariable, Op: "group.freq", Name: variable}
	}

	t := &FreqTable{Var: ds.Catalog.At(p).Name}
	counts := make(map[string]*Level)
	for _, r := range ds.Rows {
		v := r.At(p)
		if v.IsMissing() && !opts.IncludeMissing {
			t.Missing++
			continue
		}
		k := groupKey([]value.Value{v})
		lvl, ok := counts[k]
		if !ok {
			lvl = &Level{Value: v}
			counts[k] = lvl
		}
		lvl.Frequency++
		t.Total++
	}

	for _, lvl := range counts {
		t.Levels = append(t.Levels, *lvl)
	}
	slices.SortFunc(t.Levels, func(a, b Level) int { return compareKey(a.Value, b.Value, false) })

	cum := 0
	for i := range t.Levels {
		cum += t.Levels[i].Frequency
		t.Levels[i].CumFrequency = cum
		t.Levels[i].Percent = 100 * float64(t.Levels[i].Frequency) / float64(t.Total)
		t.Levels[i].CumPercent = 100 * float64(cum) / float64(t.Total)
	}
	return t, nil
}

// Dataset renders the table as a dataset with the variable followed by
// Frequency, Percent, CumFrequency and CumPercent.
func (t *FreqTable) Dataset(src *dataset.Dataset) (*dataset.Dataset, error) {
	variable, err := src.Catalog.Get(t.Var)
	if err != nil {
		return nil, err
	}
	cat, err := dataset.NewCatalog(variable,
		dataset.Num("Frequency"), dataset.Num("Percent"),
		dataset.Num("CumFrequency"), dataset.Num("CumPercent"))
	if err != nil {
		return nil, fmt.Errorf("freq table for %s: %w", t.Var, err)
	}

	out := dataset.New(src.Name+"_freq_"+t.Var, cat)
	for _, l := range t.Levels {
		r, err := dataset.RowFromValues(cat, []value.Value{
			l.Value, value.Int(l.Frequency), value.Num(l.Percent),
			value.Int(l.CumFrequency), value.Num(l.CumPercent),
		})
		if err != nil {
			return nil, err
		}
		if err := out.Append(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}
