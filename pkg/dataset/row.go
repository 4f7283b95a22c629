package dataset

import (
	"github.com/leapstack-labs/leapstep/pkg/core"
	"github.com/leapstack-labs/leapstep/pkg/value"
)

// Retainer supplies carried-over values to Row.Reset. The retain ledger
// implements it.
type Retainer interface {
	Retained(name string) (value.Value, bool)
}

// Row holds one Value per catalog variable, in catalog order.
type Row struct {
	cat      *Catalog
	vals     []value.Value
	retained []bool
}

// NewRow returns a row of missing values for cat.
func NewRow(cat *Catalog) *Row {
	r := &Row{cat: cat}
	r.Reset(nil)
	return r
}

// Catalog returns the catalog the row belongs to.
func (r *Row) Catalog() *Catalog { return r.cat }

// Reset starts an iteration: variables the retainer knows take its value,
// every other variable becomes missing of its kind. A nil retainer resets
// everything.
func (r *Row) Reset(ret Retainer) {
	n := r.cat.Len()
	if cap(r.vals) < n {
		r.vals = make([]value.Value, n)
		r.retained = make([]bool, n)
	}
	r.vals = r.vals[:n]
	r.retained = r.retained[:n]
	for i := 0; i < n; i++ {
		v := r.cat.At(i)
		if ret != nil {
			if carried, ok := ret.Retained(v.Name); ok {
				r.vals[i] = conform(v.Kind, carried)
				r.retained[i] = true
				continue
			}
		}
		r.vals[i] = value.MissingOf(v.Kind)
		r.retained[i] = false
	}
}

// IsRetained reports whether name took a carried-over value at the last reset.
func (r *Row) IsRetained(name string) bool {
	i, ok := r.cat.Lookup(name)
	return ok && i < len(r.retained) && r.retained[i]
}

// Get returns the value of name. Unknown names fail with UnknownVariable.
func (r *Row) Get(name string) (value.Value, error) {
	i, ok := r.cat.Lookup(name)
	if !ok {
		return value.Missing(), &core.Error{Kind: core.KindUnknownVariable, Op: "row.get", Name: name}
	}
	return r.At(i), nil
}

// At returns the value at catalog position i. Positions added to the
// catalog after the row was captured read as missing.
func (r *Row) At(i int) value.Value {
	if i < len(r.vals) {
		return r.vals[i]
	}
	return value.MissingOf(r.cat.At(i).Kind)
}

// Set stores v into name. Unknown names fail with UnknownVariable. A
// string stored into a numeric variable is coerced; a number stored into a
// character variable is rendered.
func (r *Row) Set(name string, v value.Value) error {
	i, ok := r.cat.Lookup(name)
	if !ok {
		return &core.Error{Kind: core.KindUnknownVariable, Op: "row.set", Name: name}
	}
	return r.setAt(i, name, v)
}

func (r *Row) setAt(i int, name string, v value.Value) error {
	r.grow()
	kind := r.cat.At(i).Kind
	if kind == value.Numeric && v.IsCharacter() {
		num, err := value.Coerce(v)
		if err != nil {
			return &core.Error{Kind: core.KindTypeError, Op: "row.set", Name: name, Err: err}
		}
		v = num
	}
	v = conform(kind, v)
	if v.IsCharacter() {
		r.cat.widen(i, len(v.Str()))
	}
	r.vals[i] = v
	return nil
}

// GetOrCreate is the assignment entry point: it adds name to the catalog
// on first use, typed after v, then stores v. Reads never create.
func (r *Row) GetOrCreate(name string, v value.Value) error {
	i, ok := r.cat.Lookup(name)
	if !ok {
		variable := Variable{Name: name, Kind: v.Kind()}
		if v.IsCharacter() && len(v.Str()) > DefaultLength {
			variable.Length = len(v.Str())
		}
		var err error
		if i, err = r.cat.Add(variable); err != nil {
			return err
		}
	}
	return r.setAt(i, name, v)
}

// grow extends the row to cover variables appended to the catalog.
func (r *Row) grow() {
	for i := len(r.vals); i < r.cat.Len(); i++ {
		r.vals = append(r.vals, value.MissingOf(r.cat.At(i).Kind))
		r.retained = append(r.retained, false)
	}
}

// Values returns a copy of the row's values in catalog order.
func (r *Row) Values() []value.Value {
	r.grow()
	out := make([]value.Value, len(r.vals))
	copy(out, r.vals)
	return out
}

// Clone returns a snapshot sharing the catalog.
func (r *Row) Clone() *Row {
	return &Row{cat: r.cat, vals: r.Values(), retained: make([]bool, r.cat.Len())}
}

// Map returns name -> plain Go value.
func (r *Row) Map() map[string]any {
	m := make(map[string]any, r.cat.Len())
	for i := 0; i < r.cat.Len(); i++ {
		m[r.cat.At(i).Name] = r.At(i).Any()
	}
	return m
}

// conform gives a missing value the kind of its variable.
func conform(kind value.Kind, v value.Value) value.Value {
	if v.IsMissing() {
		return value.MissingOf(kind)
	}
	if kind == value.Character && v.IsNumeric() {
		return value.ToCharacter(v, value.DefaultDisplay)
	}
	return v
}
