// Package array resolves indirect array references to concrete variable
// names. An array is a named, dimensioned alias over an ordered list of
// variables and is addressed with 1-based indices in row-major order.
package array

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapstep/pkg/core"
	"github.com/leapstack-labs/leapstep/pkg/dataset"
)

// Array is one declared array.
type Array struct {
	Name       string
	Dimensions []int
	Elements   []string
}

// Size returns the number of elements.
func (a *Array) Size() int { return len(a.Elements) }

// Index holds the arrays declared by one DATA step run.
type Index struct {
	arrays map[string]*Array
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{arrays: make(map[string]*Array)}
}

// Declare registers an array, replacing any earlier one with the same name.
// The element count must equal the product of the dimensions and every
// element must exist in cat. The new mapping is installed only after it
// validates.
func (x *Index) Declare(cat *dataset.Catalog, name string, dims []int, elements []string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Errorf(core.KindDimensionMismatch, "array.declare", name, "array name is required")
	}
	if len(dims) == 0 {
		dims = []int{len(elements)}
	}

	product := 1
	for _, d := range dims {
		if d < 1 {
			return core.Errorf(core.KindDimensionMismatch, "array.declare", name, "dimension %d must be at least 1", d)
		}
		product *= d
	}
	if product != len(elements) {
		return core.Errorf(core.KindDimensionMismatch, "array.declare", name,
			"dimensions %v need %d elements, got %d", dims, product, len(elements))
	}

	resolved := make([]string, len(elements))
	for i, el := range elements {
		v, err := cat.Get(el)
		if err != nil {
			return &core.Error{Kind: core.KindUnknownVariable, Op: "array.declare", Name: el, Msg: fmt.Sprintf("element of array %s", name)}
		}
		resolved[i] = v.Name
	}

	x.arrays[dataset.Fold(name)] = &Array{
		Name:       name,
		Dimensions: append([]int(nil), dims...),
		Elements:   resolved,
	}
	return nil
}

// Get returns the array called name.
func (x *Index) Get(name string) (*Array, bool) {
	a, ok := x.arrays[dataset.Fold(name)]
	return a, ok
}

// Names returns declared array names, sorted.
func (x *Index) Names() []string {
	names := make([]string, 0, len(x.arrays))
	for _, a := range x.arrays {
		names = append(names, a.Name)
	}
	sort.Strings(names)
	return names
}

// Resolve maps name{indices...} to the underlying variable name. It has no
// side effects.
func (x *Index) Resolve(name string, indices ...int) (string, error) {
	a, ok := x.Get(name)
	if !ok {
		return "", &core.Error{Kind: core.KindUnknownArray, Op: "array.resolve", Name: name}
	}
	if len(indices) != len(a.Dimensions) {
		return "", core.Errorf(core.KindIndexOutOfBounds, "array.resolve", a.Name,
			"array has %d dimension(s), got %d index(es)", len(a.Dimensions), len(indices))
	}

	offset := 0
	for d, i := range indices {
		if i < 1 || i > a.Dimensions[d] {
			return "", core.Errorf(core.KindIndexOutOfBounds, "array.resolve", a.Name,
				"index %d of dimension %d outside 1..%d", i, d+1, a.Dimensions[d])
		}
		offset = offset*a.Dimensions[d] + (i - 1)
	}
	return a.Elements[offset], nil
}
