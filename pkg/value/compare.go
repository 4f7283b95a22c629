package value

import (
	"cmp"
	"strings"
)

// rank orders the variants: Missing < Numeric < Character.
func rank(v Value) int {
	switch v.tag {
	case TagNumeric:
		return 1
	case TagCharacter:
		return 2
	}
	return 0
}

// Compare returns -1, 0 or +1. The order is total: Missing sorts before any
// number, numbers compare numerically, strings compare bytewise, and
// numbers sort before strings.
func Compare(a, b Value) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch a.tag {
	case TagNumeric:
		return cmp.Compare(a.num, b.num)
	case TagCharacter:
		return strings.Compare(a.str, b.str)
	}
	return 0
}

// Equal reports whether Compare(a, b) == 0.
func Equal(a, b Value) bool {
	return Compare(a, b) == 0
}

// SameKind reports whether a and b may be compared without a type error:
// either is missing, or both hold the same variant.
func SameKind(a, b Value) bool {
	return a.IsMissing() || b.IsMissing() || a.tag == b.tag
}
