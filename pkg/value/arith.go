package value

import (
	"github.com/leapstack-labs/leapstep/pkg/core"
)

func operands(op string, a, b Value) (x, y float64, missing bool, err error) {
	if a.IsCharacter() || b.IsCharacter() {
		return 0, 0, false, core.Errorf(core.KindTypeError, op, "", "character operand in arithmetic")
	}
	if a.IsMissing() || b.IsMissing() {
		return 0, 0, true, nil
	}
	return a.num, b.num, false, nil
}

func binary(op string, a, b Value, f func(x, y float64) Value) (Value, error) {
	x, y, missing, err := operands(op, a, b)
	if err != nil {
		return Missing(), err
	}
	if missing {
		return Missing(), nil
	}
	return f(x, y), nil
}

// Add returns a+b. A Missing operand yields Missing.
func Add(a, b Value) (Value, error) {
	return binary("value.add", a, b, func(x, y float64) Value { return Num(x + y) })
}

// Sub returns a-b.
func Sub(a, b Value) (Value, error) {
	return binary("value.sub", a, b, func(x, y float64) Value { return Num(x - y) })
}

// Mul returns a*b.
func Mul(a, b Value) (Value, error) {
	return binary("value.mul", a, b, func(x, y float64) Value { return Num(x * y) })
}

// Div returns a/b. Division by zero yields Missing.
func Div(a, b Value) (Value, error) {
	return binary("value.div", a, b, func(x, y float64) Value {
		if y == 0 {
			return Missing()
		}
		return Num(x / y)
	})
}

// Neg returns -a.
func Neg(a Value) (Value, error) {
	return binary("value.neg", a, Num(0), func(x, _ float64) Value { return Num(-x) })
}
