package starlark

import (
	"fmt"

	"github.com/leapstack-labs/leapstep/pkg/array"
	"github.com/leapstack-labs/leapstep/pkg/datastep"
	"go.starlark.net/starlark"
)

// rowValue exposes the working row. Attribute reads never create a
// variable; attribute writes do.
type rowValue struct {
	s *datastep.Session
}

var (
	_ starlark.HasSetField = rowValue{}
	_ starlark.HasSetKey   = rowValue{}
)

func (r rowValue) String() string      { return fmt.Sprintf("<row %d>", r.s.N()) }
func (rowValue) Type() string          { return "row" }
func (rowValue) Freeze()               {}
func (rowValue) Truth() starlark.Bool  { return starlark.True }
func (rowValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: row") }
func (r rowValue) AttrNames() []string { return r.s.Catalog().Names() }

func (r rowValue) Attr(name string) (starlark.Value, error) {
	v, err := r.s.Get(name)
	if err != nil {
		return nil, err
	}
	return ToStarlark(v), nil
}

func (r rowValue) SetField(name string, val starlark.Value) error {
	v, err := FromStarlark(val)
	if err != nil {
		return err
	}
	return r.s.Assign(name, v)
}

// Get and SetKey allow row["name"] for names that are not identifiers.
func (r rowValue) Get(k starlark.Value) (starlark.Value, bool, error) {
	name, ok := starlark.AsString(k)
	if !ok {
		return nil, false, fmt.Errorf("row key must be a string, got %s", k.Type())
	}
	v, err := r.Attr(name)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (r rowValue) SetKey(k, val starlark.Value) error {
	name, ok := starlark.AsString(k)
	if !ok {
		return fmt.Errorf("row key must be a string, got %s", k.Type())
	}
	return r.SetField(name, val)
}

// arrayValue is the handle array() returns. Subscripts are 1-based; a
// tuple subscript addresses a multi-dimensional array.
type arrayValue struct {
	s   *datastep.Session
	arr *array.Array
}

var (
	_ starlark.HasSetKey = arrayValue{}
	_ starlark.Sequence  = arrayValue{}
	_ starlark.HasAttrs  = arrayValue{}
)

func (a arrayValue) String() string      { return fmt.Sprintf("<array %s%v>", a.arr.Name, a.arr.Dimensions) }
func (arrayValue) Type() string          { return "array" }
func (arrayValue) Freeze()               {}
func (arrayValue) Truth() starlark.Bool  { return starlark.True }
func (arrayValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: array") }
func (a arrayValue) Len() int            { return a.arr.Size() }

func (a arrayValue) Iterate() starlark.Iterator {
	return &arrayIterator{a: a}
}

func (a arrayValue) Get(k starlark.Value) (starlark.Value, bool, error) {
	indices, err := subscript(k)
	if err != nil {
		return nil, false, err
	}
	v, err := a.s.ArrayGet(a.arr.Name, indices...)
	if err != nil {
		return nil, false, err
	}
	return ToStarlark(v), true, nil
}

func (a arrayValue) SetKey(k, val starlark.Value) error {
	indices, err := subscript(k)
	if err != nil {
		return err
	}
	v, err := FromStarlark(val)
	if err != nil {
		return err
	}
	return a.s.ArraySet(a.arr.Name, v, indices...)
}

func (a arrayValue) AttrNames() []string { return []string{"dims", "get", "name", "set", "vars"} }

func (a arrayValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "name":
		return starlark.String(a.arr.Name), nil
	case "dims":
		dims := make(starlark.Tuple, len(a.arr.Dimensions))
		for i, d := range a.arr.Dimensions {
			dims[i] = starlark.MakeInt(d)
		}
		return dims, nil
	case "vars":
		vars := make([]starlark.Value, len(a.arr.Elements))
		for i, el := range a.arr.Elements {
			vars[i] = starlark.String(el)
		}
		return starlark.NewList(vars), nil
	case "get":
		return starlark.NewBuiltin("get", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if len(kwargs) > 0 {
				return nil, fmt.Errorf("get: unexpected keyword arguments")
			}
			v, _, err := a.Get(args)
			return v, err
		}), nil
	case "set":
		return starlark.NewBuiltin("set", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var val starlark.Value
			for _, kv := range kwargs {
				if string(kv[0].(starlark.String)) != "value" {
					return nil, fmt.Errorf("set: unexpected keyword argument %s", kv[0])
				}
				val = kv[1]
			}
			if val == nil {
				if len(args) < 2 {
					return nil, fmt.Errorf("set: want indices and a value")
				}
				val, args = args[len(args)-1], args[:len(args)-1]
			}
			return starlark.None, a.SetKey(args, val)
		}), nil
	}
	return nil, nil
}

type arrayIterator struct {
	a arrayValue
	i int
}

func (it *arrayIterator) Next(p *starlark.Value) bool {
	if it.i >= it.a.arr.Size() {
		return false
	}
	v, err := it.a.s.Get(it.a.arr.Elements[it.i])
	if err != nil {
		return false
	}
	*p = ToStarlark(v)
	it.i++
	return true
}

func (it *arrayIterator) Done() {}

// subscript turns an int or a tuple of ints into array indices.
func subscript(k starlark.Value) ([]int, error) {
	parts, ok := k.(starlark.Tuple)
	if !ok {
		parts = starlark.Tuple{k}
	}
	indices := make([]int, len(parts))
	for i, p := range parts {
		if err := starlark.AsInt(p, &indices[i]); err != nil {
			return nil, fmt.Errorf("array subscript: %w", err)
		}
	}
	return indices, nil
}
