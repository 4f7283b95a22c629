package starlark

import (
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Missing is the script-side missing value. Arithmetic with a number
// yields missing again, and it is falsy. Ordered comparisons place it
// below every number and string.
var Missing starlark.Value = missingValue{}

type missingValue struct{}

var (
	_ starlark.HasBinary  = missingValue{}
	_ starlark.HasUnary   = missingValue{}
	_ starlark.Comparable = missingValue{}
)

func (missingValue) String() string        { return "missing" }
func (missingValue) Type() string          { return "missing" }
func (missingValue) Freeze()               {}
func (missingValue) Truth() starlark.Bool  { return starlark.False }
func (missingValue) Hash() (uint32, error) { return 0x6d697373, nil }

func (m missingValue) Binary(op syntax.Token, y starlark.Value, _ starlark.Side) (starlark.Value, error) {
	switch op {
	case syntax.PLUS, syntax.MINUS, syntax.STAR, syntax.SLASH, syntax.SLASHSLASH, syntax.PERCENT:
	default:
		return nil, nil
	}
	switch y.(type) {
	case starlark.Int, starlark.Float, missingValue, starlark.NoneType:
		return m, nil
	}
	return nil, nil
}

func (m missingValue) Unary(op syntax.Token) (starlark.Value, error) {
	if op == syntax.MINUS || op == syntax.PLUS {
		return m, nil
	}
	return nil, nil
}

func (missingValue) CompareSameType(op syntax.Token, _ starlark.Value, _ int) (bool, error) {
	switch op {
	case syntax.EQL, syntax.LE, syntax.GE:
		return true, nil
	}
	return false, nil
}

// isMissing reports whether v is None or the missing sentinel.
func isMissing(v starlark.Value) bool {
	switch v.(type) {
	case starlark.NoneType, missingValue:
		return true
	}
	return false
}
