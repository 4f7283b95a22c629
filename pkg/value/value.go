// Package value implements the tagged scalar stored in every row cell.
//
// A Value is exactly one of Numeric, Character or Missing. Missing carries
// the kind of the variable it stands in for, so a missing Character value
// and an explicitly empty string remain distinguishable.
package value

import (
	"math"
	"time"
)

// Kind is the declared type of a variable.
type Kind uint8

// Variable kinds.
const (
	Numeric Kind = iota
	Character
)

func (k Kind) String() string {
	if k == Character {
		return "char"
	}
	return "num"
}

// Tag identifies which variant a Value holds.
type Tag uint8

// Value variants.
const (
	TagMissing Tag = iota
	TagNumeric
	TagCharacter
)

// Value is a Numeric(f64), Character(string) or Missing scalar.
// The zero Value is a numeric Missing.
type Value struct {
	tag  Tag
	kind Kind
	num  float64
	str  string
}

// Num returns a Numeric value. NaN and infinities normalise to Missing.
func Num(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Missing()
	}
	return Value{tag: TagNumeric, kind: Numeric, num: f}
}

// Int is shorthand for Num(float64(i)).
func Int(i int) Value {
	return Num(float64(i))
}

// Char returns a Character value. Char("") is an explicit empty string,
// not a missing value.
func Char(s string) Value {
	return Value{tag: TagCharacter, kind: Character, str: s}
}

// Missing returns a numeric missing value.
func Missing() Value {
	return Value{}
}

// MissingOf returns a missing value for a variable of kind k.
func MissingOf(k Kind) Value {
	return Value{tag: TagMissing, kind: k}
}

// Tag returns which variant v holds.
func (v Value) Tag() Tag { return v.tag }

// Kind returns the variable kind v belongs to. For missing values it is the
// kind they were created for.
func (v Value) Kind() Kind { return v.kind }

// IsMissing reports whether v is Missing.
func (v Value) IsMissing() bool { return v.tag == TagMissing }

// IsNumeric reports whether v holds a number.
func (v Value) IsNumeric() bool { return v.tag == TagNumeric }

// IsCharacter reports whether v holds a string.
func (v Value) IsCharacter() bool { return v.tag == TagCharacter }

// Float returns the number held by v.
func (v Value) Float() (float64, bool) {
	if v.tag != TagNumeric {
		return 0, false
	}
	return v.num, true
}

// Str returns the string held by v, or "" for any other variant.
func (v Value) Str() string {
	if v.tag != TagCharacter {
		return ""
	}
	return v.str
}

// IsTrue applies the language's truth test: non-zero numbers and non-empty
// strings are true, Missing is false.
func (v Value) IsTrue() bool {
	switch v.tag {
	case TagNumeric:
		return v.num != 0
	case TagCharacter:
		return v.str != ""
	}
	return false
}

// Bool converts a Go bool to 1 or 0.
func Bool(b bool) Value {
	if b {
		return Num(1)
	}
	return Num(0)
}

// Epoch is day zero of the numeric date representation.
var Epoch = time.Date(1960, time.January, 1, 0, 0, 0, 0, time.UTC)

// FromTime converts t to a Numeric day count since Epoch.
func FromTime(t time.Time) Value {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return Num(math.Round(day.Sub(Epoch).Hours() / 24))
}

// Time converts a day count since Epoch back to a time.
func (v Value) Time() (time.Time, bool) {
	if v.tag != TagNumeric {
		return time.Time{}, false
	}
	return Epoch.AddDate(0, 0, int(math.Floor(v.num))), true
}
