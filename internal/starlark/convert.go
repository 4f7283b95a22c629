// Package starlark runs DATA step programs written in Starlark.
//
// A script is compiled once and executed against every iteration's working
// row. Variables are exposed through the predeclared row handle; numbers map
// to int or float, strings to string and Missing to the missing sentinel.
package starlark

import (
	"fmt"
	"math"
	"sort"

	"github.com/leapstack-labs/leapstep/pkg/core"
	"github.com/leapstack-labs/leapstep/pkg/value"
	"go.starlark.net/starlark"
)

// maxExactInt is the largest integer a float64 holds exactly.
const maxExactInt = 1 << 53

// ToStarlark converts a cell value. Integral numbers become int so that
// they can index lists and arrays.
func ToStarlark(v value.Value) starlark.Value {
	switch v.Tag() {
	case value.TagNumeric:
		f, _ := v.Float()
		if f == math.Trunc(f) && math.Abs(f) < maxExactInt {
			return starlark.MakeInt64(int64(f))
		}
		return starlark.Float(f)
	case value.TagCharacter:
		return starlark.String(v.Str())
	}
	return Missing
}

// FromStarlark converts a script value to a cell value. None and the
// missing sentinel are Missing; bool is 1 or 0.
func FromStarlark(v starlark.Value) (value.Value, error) {
	switch x := v.(type) {
	case starlark.NoneType, missingValue:
		return value.Missing(), nil
	case starlark.Bool:
		return value.Bool(bool(x)), nil
	case starlark.Int:
		if i, ok := x.Int64(); ok {
			return value.Num(float64(i)), nil
		}
		return value.Num(float64(x.Float())), nil
	case starlark.Float:
		return value.Num(float64(x)), nil
	case starlark.String:
		return value.Char(string(x)), nil
	}
	return value.Missing(), core.Errorf(core.KindTypeError, "starlark.convert", "",
		"cannot store %s in a variable", v.Type())
}

// GoToStarlark converts plain Go data, as decoded from YAML, to a Starlark
// value. Map keys are inserted in sorted order.
func GoToStarlark(v any) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case string:
		return starlark.String(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case bool:
		return starlark.Bool(val), nil
	case value.Value:
		return ToStarlark(val), nil
	case []string:
		list := make([]starlark.Value, len(val))
		for i, s := range val {
			list[i] = starlark.String(s)
		}
		return starlark.NewList(list), nil
	case []any:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := GoToStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		dict := starlark.NewDict(len(val))
		for _, k := range keys {
			sv, err := GoToStarlark(val[k])
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", k, err)
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, fmt.Errorf("dict setkey %q: %w", k, err)
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
