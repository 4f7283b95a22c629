package value

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/leapstep/pkg/core"
)

// Coerce converts v to a numeric Value. Strings that parse as numbers
// convert; "" and "." become Missing; anything else is a TypeError.
func Coerce(v Value) (Value, error) {
	switch v.tag {
	case TagNumeric:
		return v, nil
	case TagMissing:
		return Missing(), nil
	}
	s := strings.TrimSpace(v.str)
	if s == "" || s == MissingGlyph {
		return Missing(), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Missing(), &core.Error{
			Kind: core.KindTypeError,
			Op:   "value.coerce",
			Msg:  fmt.Sprintf("%q is not a number", v.str),
		}
	}
	return Num(f), nil
}

// ToCharacter converts v to a Character value using opts for numbers.
// Missing stays missing.
func ToCharacter(v Value, opts DisplayOptions) Value {
	switch v.tag {
	case TagCharacter:
		return v
	case TagNumeric:
		return Char(v.Display(opts))
	}
	return MissingOf(Character)
}

// FromAny converts a Go value produced by a database driver or script into
// a Value.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Missing(), nil
	case Value:
		return t, nil
	case float64:
		return Num(t), nil
	case float32:
		return Num(float64(t)), nil
	case int:
		return Num(float64(t)), nil
	case int8:
		return Num(float64(t)), nil
	case int16:
		return Num(float64(t)), nil
	case int32:
		return Num(float64(t)), nil
	case int64:
		return Num(float64(t)), nil
	case uint8:
		return Num(float64(t)), nil
	case uint16:
		return Num(float64(t)), nil
	case uint32:
		return Num(float64(t)), nil
	case uint64:
		return Num(float64(t)), nil
	case bool:
		return Bool(t), nil
	case string:
		return Char(t), nil
	case []byte:
		return Char(string(t)), nil
	case time.Time:
		return FromTime(t), nil
	}
	return Missing(), core.Errorf(core.KindTypeError, "value.from", "", "unsupported Go type %T", x)
}

// Any converts v to a plain Go value: float64, string or nil.
func (v Value) Any() any {
	switch v.tag {
	case TagNumeric:
		return v.num
	case TagCharacter:
		return v.str
	}
	return nil
}
