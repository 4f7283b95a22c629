// Package dataset defines the in-memory table shape shared by the DATA step
// engine and the procedures: an ordered catalog of variable descriptors and
// rows that hold one Value per catalog entry.
package dataset

import (
	"strings"

	"github.com/leapstack-labs/leapstep/pkg/core"
	"github.com/leapstack-labs/leapstep/pkg/value"
	"golang.org/x/text/cases"
)

// DefaultLength is the storage length given to variables created without one.
const DefaultLength = 8

// Variable describes one column of a dataset.
type Variable struct {
	Name   string
	Kind   value.Kind
	Length int
	Label  string
	Format string
}

// Fold returns the case-insensitive identity of a variable name.
func Fold(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// Catalog is the ordered list of variables of a dataset. Names are unique
// ignoring case and keep the spelling they were declared with.
type Catalog struct {
	vars  []Variable
	index map[string]int
}

// NewCatalog creates a catalog from vars in order.
func NewCatalog(vars ...Variable) (*Catalog, error) {
	c := &Catalog{index: make(map[string]int, len(vars))}
	for _, v := range vars {
		if _, err := c.Add(v); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustCatalog is NewCatalog that panics on error. Intended for fixtures.
func MustCatalog(vars ...Variable) *Catalog {
	c, err := NewCatalog(vars...)
	if err != nil {
		panic(err)
	}
	return c
}

// Num is shorthand for a numeric Variable.
func Num(name string) Variable {
	return Variable{Name: name, Kind: value.Numeric, Length: DefaultLength}
}

// Char is shorthand for a character Variable.
func Char(name string, length int) Variable {
	if length <= 0 {
		length = DefaultLength
	}
	return Variable{Name: name, Kind: value.Character, Length: length}
}

// Add appends v and returns its position.
func (c *Catalog) Add(v Variable) (int, error) {
	name := strings.TrimSpace(v.Name)
	if name == "" {
		return 0, core.Errorf(core.KindInvalidVariable, "catalog.add", name, "variable name is required")
	}
	key := Fold(name)
	if _, exists := c.index[key]; exists {
		return 0, core.Errorf(core.KindInvalidVariable, "catalog.add", name, "duplicate variable")
	}
	v.Name = name
	if v.Length <= 0 {
		v.Length = DefaultLength
	}
	c.vars = append(c.vars, v)
	c.index[key] = len(c.vars) - 1
	return len(c.vars) - 1, nil
}

// Lookup returns the position of name.
func (c *Catalog) Lookup(name string) (int, bool) {
	i, ok := c.index[Fold(name)]
	return i, ok
}

// Has reports whether name is in the catalog.
func (c *Catalog) Has(name string) bool {
	_, ok := c.Lookup(name)
	return ok
}

// Get returns the descriptor for name.
func (c *Catalog) Get(name string) (Variable, error) {
	i, ok := c.Lookup(name)
	if !ok {
		return Variable{}, &core.Error{Kind: core.KindUnknownVariable, Op: "catalog.get", Name: name}
	}
	return c.vars[i], nil
}

// At returns the descriptor at position i.
func (c *Catalog) At(i int) Variable { return c.vars[i] }

// Len returns the number of variables.
func (c *Catalog) Len() int { return len(c.vars) }

// Vars returns a copy of the descriptors in order.
func (c *Catalog) Vars() []Variable {
	out := make([]Variable, len(c.vars))
	copy(out, c.vars)
	return out
}

// Names returns variable names in order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.vars))
	for i, v := range c.vars {
		names[i] = v.Name
	}
	return names
}

// NamesOfKind returns, in order, the names of variables of kind k.
func (c *Catalog) NamesOfKind(k value.Kind) []string {
	var names []string
	for _, v := range c.vars {
		if v.Kind == k {
			names = append(names, v.Name)
		}
	}
	return names
}

// SetFormat attaches a format name to a variable.
func (c *Catalog) SetFormat(name, format string) error {
	i, ok := c.Lookup(name)
	if !ok {
		return &core.Error{Kind: core.KindUnknownVariable, Op: "catalog.format", Name: name}
	}
	c.vars[i].Format = format
	return nil
}

// SetLabel attaches a label to a variable.
func (c *Catalog) SetLabel(name, label string) error {
	i, ok := c.Lookup(name)
	if !ok {
		return &core.Error{Kind: core.KindUnknownVariable, Op: "catalog.label", Name: name}
	}
	c.vars[i].Label = label
	return nil
}

// widen records the width of a character value stored in variable i.
func (c *Catalog) widen(i int, width int) {
	if c.vars[i].Kind == value.Character && width > c.vars[i].Length {
		c.vars[i].Length = width
	}
}

// Clone returns an independent copy.
func (c *Catalog) Clone() *Catalog {
	cp := &Catalog{
		vars:  make([]Variable, len(c.vars)),
		index: make(map[string]int, len(c.index)),
	}
	copy(cp.vars, c.vars)
	for k, v := range c.index {
		cp.index[k] = v
	}
	return cp
}
