package group

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapstep/pkg/core"
	"github.com/leapstack-labs/leapstep/pkg/dataset"
	"github.com/leapstack-labs/leapstep/pkg/value"
)

// FreqVar is the member-count column added when Request.Freq is set.
const FreqVar = "_FREQ_"

// Group is a set of rows sharing one key.
type Group struct {
	Key []value.Value
	// Rows are input row positions in input order.
	Rows []int
}

// Result is the aggregate of one group.
type Result struct {
	Key []value.Value
	// Stats maps column names such as "Sal_Mean" to their value.
	Stats       map[string]value.Value
	MemberCount int
}

// Request describes an aggregation.
type Request struct {
	Keys  []string
	Vars  []string
	Stats []Stat
	// Freq adds the _FREQ_ member-count column after the keys.
	Freq bool
	// Name of the output dataset.
	Name string
}

// Options configures an Aggregator.
type Options struct {
	// Concurrency bounds the per-group workers. Values below 1 mean 1.
	Concurrency int
	Logger      *slog.Logger
}

// Aggregator computes grouped statistics. Groups are summarized on a
// bounded worker pool; output order is always first-seen group order.
type Aggregator struct {
	concurrency int
	logger      *slog.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(opts Options) *Aggregator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := opts.Concurrency
	if c < 1 {
		c = 1
	}
	return &Aggregator{concurrency: c, logger: logger}
}

// Aggregate is a sequential shortcut for Aggregator.Aggregate.
func Aggregate(ds *dataset.Dataset, keys []string, stats []Stat, vars []string) (*dataset.Dataset, error) {
	return NewAggregator(Options{}).Aggregate(context.Background(), ds,
		Request{Keys: keys, Stats: stats, Vars: vars})
}

// StatColumn names the output column of var and stat.
func StatColumn(variable string, stat Stat) string {
	return variable + "_" + stat.String()
}

// groupKey encodes key values so that equal values, and only equal
// values, share an encoding.
func groupKey(vals []value.Value) string {
	var b strings.Builder
	for _, v := range vals {
		switch v.Tag() {
		case value.TagMissing:
			b.WriteString("m;")
		case value.TagNumeric:
			f, _ := v.Float()
			if f == 0 {
				f = 0
			}
			b.WriteString("n")
			b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
			b.WriteByte(';')
		case value.TagCharacter:
			s := v.Str()
			b.WriteString("c")
			b.WriteString(strconv.Itoa(len(s)))
			b.WriteByte(':')
			b.WriteString(s)
		}
	}
	return b.String()
}

// Groups partitions ds by equality of keys, in first-seen order. With no
// keys the whole dataset is one group, even when empty.
func Groups(ds *dataset.Dataset, keys []string) ([]*Group, error) {
	positions := make([]int, len(keys))
	for i, k := range keys {
		p, ok := ds.Catalog.Lookup(k)
		if !ok {
			return nil, &core.Error{Kind: core.KindUnknownVariable, Op: "group.by", Name: k}
		}
		positions[i] = p
	}

	if len(keys) == 0 {
		g := &Group{Rows: make([]int, ds.Len())}
		for i := range g.Rows {
			g.Rows[i] = i
		}
		return []*Group{g}, nil
	}

	var groups []*Group
	index := make(map[string]*Group)
	for i, r := range ds.Rows {
		kv := make([]value.Value, len(positions))
		for j, p := range positions {
			kv[j] = r.At(p)
		}
		k := groupKey(kv)
		g, ok := index[k]
		if !ok {
			g = &Group{Key: kv}
			index[k] = g
			groups = append(groups, g)
		}
		g.Rows = append(g.Rows, i)
	}
	return groups, nil
}

func (a *Aggregator) validate(ds *dataset.Dataset, req Request) ([]int, error) {
	vars := make([]int, len(req.Vars))
	for i, name := range req.Vars {
		p, ok := ds.Catalog.Lookup(name)
		if !ok {
			return nil, &core.Error{Kind: core.KindUnknownVariable, Op: "group.aggregate", Name: name}
		}
		if ds.Catalog.At(p).Kind != value.Numeric {
			return nil, core.Errorf(core.KindTypeError, "group.aggregate", name, "statistics require a numeric variable")
		}
		vars[i] = p
	}
	for _, s := range req.Stats {
		if s < 0 || int(s) >= len(statNames) {
			return nil, core.Errorf(core.KindInvalidStatRequest, "group.aggregate", s.String(), "unknown statistic")
		}
	}
	return vars, nil
}

// Summarize groups ds and computes req.Stats for every var in every group.
// It returns either a complete result or an error, never a partial one.
func (a *Aggregator) Summarize(ctx context.Context, ds *dataset.Dataset, req Request) ([]Result, error) {
	vars, err := a.validate(ds, req)
	if err != nil {
		return nil, err
	}
	groups, err := Groups(ds, req.Keys)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("aggregating", "dataset", ds.Name, "groups", len(groups), "vars", len(vars), "stats", len(req.Stats))

	results := make([]Result, len(groups))
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(a.concurrency)
	for gi, g := range groups {
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				return &core.Error{Kind: core.KindCancelled, Op: "group.aggregate", Name: ds.Name, Err: err}
			}
			results[gi] = summarizeGroup(ds, g, req, vars)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func summarizeGroup(ds *dataset.Dataset, g *Group, req Request, vars []int) Result {
	res := Result{
		Key:         g.Key,
		Stats:       make(map[string]value.Value, len(vars)*len(req.Stats)),
		MemberCount: len(g.Rows),
	}
	for vi, p := range vars {
		s := sample{size: len(g.Rows), values: make([]float64, 0, len(g.Rows))}
		for _, ri := range g.Rows {
			if f, ok := ds.Rows[ri].At(p).Float(); ok {
				s.values = append(s.values, f)
			}
		}
		for _, stat := range req.Stats {
			res.Stats[StatColumn(req.Vars[vi], stat)] = s.compute(stat)
		}
	}
	return res
}

// Aggregate builds the derived dataset: key columns, then _FREQ_ when
// requested, then one column per var and stat, var-major in request order.
func (a *Aggregator) Aggregate(ctx context.Context, ds *dataset.Dataset, req Request) (*dataset.Dataset, error) {
	results, err := a.Summarize(ctx, ds, req)
	if err != nil {
		return nil, err
	}

	cat := dataset.MustCatalog()
	for _, k := range req.Keys {
		v, err := ds.Catalog.Get(k)
		if err != nil {
			return nil, err
		}
		if _, err := cat.Add(v); err != nil {
			return nil, err
		}
	}
	if req.Freq {
		if _, err := cat.Add(dataset.Num(FreqVar)); err != nil {
			return nil, err
		}
	}
	var columns []string
	for _, v := range req.Vars {
		for _, s := range req.Stats {
			col := StatColumn(v, s)
			if _, err := cat.Add(dataset.Num(col)); err != nil {
				return nil, err
			}
			columns = append(columns, col)
		}
	}

	name := req.Name
	if name == "" {
		name = ds.Name
	}
	out := dataset.New(name, cat)
	for _, r := range results {
		vals := make([]value.Value, 0, cat.Len())
		vals = append(vals, r.Key...)
		if req.Freq {
			vals = append(vals, value.Int(r.MemberCount))
		}
		for _, col := range columns {
			vals = append(vals, r.Stats[col])
		}
		row, err := dataset.RowFromValues(cat, vals)
		if err != nil {
			return nil, err
		}
		if err := out.Append(row); err != nil {
			return nil, err
		}
	}
	return out, nil
}
