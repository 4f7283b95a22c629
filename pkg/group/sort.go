package group

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapstep/pkg/core"
	"github.com/leapstack-labs/leapstep/pkg/dataset"
	"github.com/leapstack-labs/leapstep/pkg/value"
)

// SortKey is one BY variable.
type SortKey struct {
	Var        string
	Descending bool
}

// Asc and Desc build sort keys.
func Asc(name string) SortKey  { return SortKey{Var: name} }
func Desc(name string) SortKey { return SortKey{Var: name, Descending: true} }

// ParseSortKeys reads a BY list such as "dept descending salary" or
// "dept -salary". DESCENDING applies to the variable that follows it.
func ParseSortKeys(fields []string) ([]SortKey, error) {
	var keys []SortKey
	desc := false
	for _, f := range fields {
		switch {
		case strings.EqualFold(f, "descending"):
			if desc {
				return nil, fmt.Errorf("descending given twice")
			}
			desc = true
			continue
		case strings.HasPrefix(f, "-") && len(f) > 1:
			keys = append(keys, Desc(f[1:]))
		default:
			keys = append(keys, SortKey{Var: f, Descending: desc})
		}
		desc = false
	}
	if desc {
		return nil, fmt.Errorf("descending must be followed by a variable")
	}
	return keys, nil
}

// compareKey orders two values of one key. Missing sorts first whatever
// the direction; direction reverses only the comparison of present values.
func compareKey(a, b value.Value, descending bool) int {
	switch {
	case a.IsMissing() && b.IsMissing():
		return 0
	case a.IsMissing():
		return -1
	case b.IsMissing():
		return 1
	}
	c := value.Compare(a, b)
	if descending {
		return -c
	}
	return c
}

func resolveKeys(cat *dataset.Catalog, op string, keys []SortKey) ([]int, error) {
	positions := make([]int, len(keys))
	for i, k := range keys {
		p, ok := cat.Lookup(k.Var)
		if !ok {
			return nil, &core.Error{Kind: core.KindUnknownVariable, Op: op, Name: k.Var}
		}
		positions[i] = p
	}
	return positions, nil
}

// copyDataset rebuilds ds with its own catalog, rows in the given order.
func copyDataset(ds *dataset.Dataset, name string, order []int) (*dataset.Dataset, error) {
	out := dataset.New(name, ds.Catalog.Clone())
	for _, i := range order {
		r, err := dataset.RowFromValues(out.Catalog, ds.Rows[i].Values())
		if err != nil {
			return nil, err
		}
		if err := out.Append(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Sort returns ds stably sorted by keys. Ties on every key keep input
// order. With dedup, consecutive rows equal on all keys collapse to the
// first of them.
func Sort(ds *dataset.Dataset, keys []SortKey, dedup bool) (*dataset.Dataset, error) {
	positions, err := resolveKeys(ds.Catalog, "group.sort", keys)
	if err != nil {
		return nil, err
	}

	order := make([]int, ds.Len())
	for i := range order {
		order[i] = i
	}
	cmpRows := func(a, b int) int {
		for k, p := range positions {
			if c := compareKey(ds.Rows[a].At(p), ds.Rows[b].At(p), keys[k].Descending); c != 0 {
				return c
			}
		}
		return 0
	}
	slices.SortStableFunc(order, cmpRows)

	if dedup && len(order) > 0 {
		kept := order[:1]
		for _, i := range order[1:] {
			if cmpRows(kept[len(kept)-1], i) != 0 {
				kept = append(kept, i)
			}
		}
		order = kept
	}

	return copyDataset(ds, ds.Name, order)
}
