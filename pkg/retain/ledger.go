// Package retain implements the RETAIN ledger of a DATA step: the set of
// variables whose values survive from one iteration to the next, along
// with their carried-over values.
package retain

import (
	"strings"

	"github.com/leapstack-labs/leapstep/pkg/core"
	"github.com/leapstack-labs/leapstep/pkg/dataset"
	"github.com/leapstack-labs/leapstep/pkg/value"
)

// Wildcards accepted in a declaration's name list.
const (
	All       = "_ALL_"
	Numeric   = "_NUMERIC_"
	Character = "_CHARACTER_"
)

type entry struct {
	name string
	val  value.Value
}

// Ledger maps retained variable names to their carried-over value. It is
// scoped to a single DATA step run.
type Ledger struct {
	entries map[string]*entry
	order   []string
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string]*entry)}
}

// Declare marks names as retained. Wildcards expand against cat at the
// moment of the call. Initial values bind left to right to the expanded
// names; names beyond the values get Missing (or keep their stored value
// when already retained). Names missing from cat are added as numeric,
// or as character when their bound initial value is a string.
//
// Declare returns the names that were not retained before the call. A
// surplus of initial values is reported as a *core.Warning after every
// name has been declared.
func (l *Ledger) Declare(cat *dataset.Catalog, names []string, initial []value.Value) ([]string, error) {
	expanded := expand(cat, names)

	var added []string
	for i, name := range expanded {
		variable, err := cat.Get(name)
		if err != nil {
			newVar := dataset.Num(name)
			if i < len(initial) && initial[i].IsCharacter() {
				newVar = dataset.Char(name, len(initial[i].Str()))
			}
			if _, err := cat.Add(newVar); err != nil {
				return added, err
			}
			variable, _ = cat.Get(name)
		}

		var init value.Value
		if i < len(initial) {
			if init, err = initialFor(variable.Kind, initial[i]); err != nil {
				return added, &core.Error{Kind: core.KindTypeError, Op: "retain.declare", Name: variable.Name, Err: err}
			}
		}

		key := dataset.Fold(variable.Name)
		e, exists := l.entries[key]
		if !exists {
			e = &entry{name: variable.Name, val: value.MissingOf(variable.Kind)}
			l.entries[key] = e
			l.order = append(l.order, key)
			added = append(added, variable.Name)
		}
		if i < len(initial) {
			e.val = init
		}
	}

	if len(initial) > len(expanded) {
		return added, core.Warnf(core.KindFormatError,
			"%d initial value(s) supplied for %d retained variable(s); surplus ignored",
			len(initial), len(expanded))
	}
	return added, nil
}

// initialFor converts v to kind. A string that does not parse as a number
// cannot initialise a numeric variable.
func initialFor(kind value.Kind, v value.Value) (value.Value, error) {
	switch {
	case v.IsMissing():
		return value.MissingOf(kind), nil
	case kind == value.Character && v.IsNumeric():
		return value.ToCharacter(v, value.DefaultDisplay), nil
	case kind == value.Numeric && v.IsCharacter():
		return value.Coerce(v)
	}
	return v, nil
}

// expand replaces wildcards with catalog names, preserving order and
// dropping duplicates.
func expand(cat *dataset.Catalog, names []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(n string) {
		key := dataset.Fold(n)
		if !seen[key] {
			seen[key] = true
			out = append(out, n)
		}
	}
	for _, n := range names {
		switch strings.ToUpper(strings.TrimSpace(n)) {
		case All:
			for _, v := range cat.Names() {
				add(v)
			}
		case Numeric:
			for _, v := range cat.NamesOfKind(value.Numeric) {
				add(v)
			}
		case Character:
			for _, v := range cat.NamesOfKind(value.Character) {
				add(v)
			}
		default:
			add(strings.TrimSpace(n))
		}
	}
	return out
}

// Retained implements dataset.Retainer.
func (l *Ledger) Retained(name string) (value.Value, bool) {
	e, ok := l.entries[dataset.Fold(name)]
	if !ok {
		return value.Missing(), false
	}
	return e.val, true
}

// Has reports whether name is retained.
func (l *Ledger) Has(name string) bool {
	_, ok := l.entries[dataset.Fold(name)]
	return ok
}

// Names returns retained names in declaration order.
func (l *Ledger) Names() []string {
	out := make([]string, len(l.order))
	for i, key := range l.order {
		out[i] = l.entries[key].name
	}
	return out
}

// Len returns the number of retained variables.
func (l *Ledger) Len() int { return len(l.order) }

// AfterIteration copies the row's current value of every retained variable
// back into the ledger.
func (l *Ledger) AfterIteration(row *dataset.Row) error {
	for _, key := range l.order {
		e := l.entries[key]
		v, err := row.Get(e.name)
		if err != nil {
			return err
		}
		e.val = v
	}
	return nil
}
