package dataset

import (
	"fmt"

	"github.com/leapstack-labs/leapstep/pkg/core"
	"github.com/leapstack-labs/leapstep/pkg/value"
)

// Dataset is a catalog plus an ordered sequence of rows over it.
type Dataset struct {
	Name    string
	Catalog *Catalog
	Rows    []*Row
}

// New returns an empty dataset over cat.
func New(name string, cat *Catalog) *Dataset {
	if cat == nil {
		cat = MustCatalog()
	}
	return &Dataset{Name: name, Catalog: cat}
}

// FromRecords builds a dataset from positional records. Each record value
// goes through value.FromAny.
func FromRecords(name string, vars []Variable, records [][]any) (*Dataset, error) {
	cat, err := NewCatalog(vars...)
	if err != nil {
		return nil, err
	}
	ds := New(name, cat)
	for i, rec := range records {
		if err := ds.AppendValues(rec...); err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
	}
	return ds, nil
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.Rows) }

// Append adds a row that belongs to d's catalog.
func (d *Dataset) Append(r *Row) error {
	if r.cat != d.Catalog {
		return fmt.Errorf("row belongs to a different catalog")
	}
	d.Rows = append(d.Rows, r)
	return nil
}

// AppendValues adds a row from positional Go values.
func (d *Dataset) AppendValues(vals ...any) error {
	if len(vals) != d.Catalog.Len() {
		return fmt.Errorf("expected %d values, got %d", d.Catalog.Len(), len(vals))
	}
	r := NewRow(d.Catalog)
	for i, x := range vals {
		v, err := value.FromAny(x)
		if err != nil {
			return err
		}
		if err := r.setAt(i, d.Catalog.At(i).Name, v); err != nil {
			return err
		}
	}
	d.Rows = append(d.Rows, r)
	return nil
}

// Normalize pads every row to the full catalog, restoring the invariant
// that each row holds exactly one value per variable.
func (d *Dataset) Normalize() {
	for _, r := range d.Rows {
		r.grow()
	}
}

// Column returns the values of name across all rows.
func (d *Dataset) Column(name string) ([]value.Value, error) {
	i, ok := d.Catalog.Lookup(name)
	if !ok {
		return nil, &core.Error{Kind: core.KindUnknownVariable, Op: "dataset.column", Name: name}
	}
	out := make([]value.Value, len(d.Rows))
	for j, r := range d.Rows {
		out[j] = r.At(i)
	}
	return out, nil
}

// Clone returns a deep copy with its own catalog.
func (d *Dataset) Clone() *Dataset {
	cat := d.Catalog.Clone()
	out := New(d.Name, cat)
	out.Rows = make([]*Row, len(d.Rows))
	for i, r := range d.Rows {
		out.Rows[i] = &Row{cat: cat, vals: r.Values(), retained: make([]bool, cat.Len())}
	}
	return out
}

// WithRows returns a dataset sharing d's catalog holding rows.
func (d *Dataset) WithRows(name string, rows []*Row) *Dataset {
	return &Dataset{Name: name, Catalog: d.Catalog, Rows: rows}
}

// Project returns a copy restricted to keep (all when empty) minus drop.
// Column order follows the source catalog.
func (d *Dataset) Project(keep, drop []string) (*Dataset, error) {
	if len(keep) == 0 && len(drop) == 0 {
		return d, nil
	}
	selected := make(map[int]bool)
	if len(keep) == 0 {
		for i := 0; i < d.Catalog.Len(); i++ {
			selected[i] = true
		}
	}
	for _, name := range keep {
		i, ok := d.Catalog.Lookup(name)
		if !ok {
			return nil, &core.Error{Kind: core.KindUnknownVariable, Op: "dataset.keep", Name: name}
		}
		selected[i] = true
	}
	for _, name := range drop {
		i, ok := d.Catalog.Lookup(name)
		if !ok {
			return nil, &core.Error{Kind: core.KindUnknownVariable, Op: "dataset.drop", Name: name}
		}
		delete(selected, i)
	}

	var positions []int
	cat := MustCatalog()
	for i := 0; i < d.Catalog.Len(); i++ {
		if selected[i] {
			positions = append(positions, i)
			if _, err := cat.Add(d.Catalog.At(i)); err != nil {
				return nil, err
			}
		}
	}

	out := New(d.Name, cat)
	out.Rows = make([]*Row, len(d.Rows))
	for j, r := range d.Rows {
		vals := make([]value.Value, len(positions))
		for k, p := range positions {
			vals[k] = r.At(p)
		}
		out.Rows[j] = &Row{cat: cat, vals: vals, retained: make([]bool, len(positions))}
	}
	return out, nil
}

// RowFromValues builds a row over cat from values in catalog order.
func RowFromValues(cat *Catalog, vals []value.Value) (*Row, error) {
	if len(vals) != cat.Len() {
		return nil, fmt.Errorf("expected %d values, got %d", cat.Len(), len(vals))
	}
	r := NewRow(cat)
	for i, v := range vals {
		if err := r.setAt(i, cat.At(i).Name, v); err != nil {
			return nil, err
		}
	}
	return r, nil
}
