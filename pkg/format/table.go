// Package format implements FORMAT tables: named, ordered lists of value
// ranges mapped to labels, resolved by first match in declaration order.
package format

import (
	"fmt"

	"github.com/leapstack-labs/leapstep/pkg/core"
	"github.com/leapstack-labs/leapstep/pkg/value"
)

// BoundKind identifies how a range end admits values.
type BoundKind uint8

// Bound kinds. NegInf and PosInf are the LOW and HIGH keywords.
const (
	NegInf BoundKind = iota
	PosInf
	Inclusive
	ExclusiveAbove
	ExclusiveBelow
)

func (k BoundKind) String() string {
	switch k {
	case NegInf:
		return "low"
	case PosInf:
		return "high"
	case Inclusive:
		return "inclusive"
	case ExclusiveAbove:
		return "exclusive-above"
	case ExclusiveBelow:
		return "exclusive-below"
	}
	return fmt.Sprintf("BoundKind(%d)", int(k))
}

// Bound is one end of a range.
type Bound struct {
	Kind  BoundKind
	Value value.Value
}

// Low is the LOW keyword: no lower limit.
func Low() Bound { return Bound{Kind: NegInf} }

// High is the HIGH keyword: no upper limit.
func High() Bound { return Bound{Kind: PosInf} }

// At is an inclusive bound.
func At(v value.Value) Bound { return Bound{Kind: Inclusive, Value: v} }

// Above admits values strictly greater than v (the "v <-" form).
func Above(v value.Value) Bound { return Bound{Kind: ExclusiveAbove, Value: v} }

// Below admits values strictly less than v (the "-< v" form).
func Below(v value.Value) Bound { return Bound{Kind: ExclusiveBelow, Value: v} }

func (b Bound) bounded() bool { return b.Kind != NegInf && b.Kind != PosInf }

// Range maps the values between Low and High to Label. An Other range
// matches every value, missing included.
type Range struct {
	Low   Bound
	High  Bound
	Label string
	Other bool
}

// Between is an inclusive [lo, hi] range.
func Between(lo, hi value.Value, label string) Range {
	return Range{Low: At(lo), High: At(hi), Label: label}
}

// Single matches exactly v.
func Single(v value.Value, label string) Range {
	return Range{Low: At(v), High: At(v), Label: label}
}

// Other matches anything not matched by an earlier range.
func Other(label string) Range {
	return Range{Label: label, Other: true}
}

// MissingRange matches only missing values.
func MissingRange(label string) Range {
	return Single(value.Missing(), label)
}

func (r Range) isMissingRange() bool {
	return !r.Other && r.Low.Kind == Inclusive && r.High.Kind == Inclusive &&
		r.Low.Value.IsMissing() && r.High.Value.IsMissing()
}

func (r Range) String() string {
	if r.Other {
		return "other"
	}
	side := func(b Bound) string {
		switch b.Kind {
		case NegInf, PosInf:
			return b.Kind.String()
		case ExclusiveAbove:
			return b.Value.String() + "<"
		case ExclusiveBelow:
			return "<" + b.Value.String()
		}
		return b.Value.String()
	}
	return side(r.Low) + "-" + side(r.High)
}

// Table is a declared format.
type Table struct {
	Name   string
	Ranges []Range
	// kind is the variant of the bounded range values, TagMissing when the
	// table has none.
	kind value.Tag
}

// NewTable validates ranges and builds a table. Bounds must sit on their
// proper side (the low end accepts LOW, inclusive or exclusive-above; the
// high end HIGH, inclusive or exclusive-below), a missing bound must pair
// with another missing bound, and numeric and character bounds must not
// be mixed.
func NewTable(name string, ranges []Range) (*Table, error) {
	t := &Table{Name: name, Ranges: append([]Range(nil), ranges...), kind: value.TagMissing}
	for i, r := range ranges {
		if r.Other {
			continue
		}
		switch r.Low.Kind {
		case NegInf, Inclusive, ExclusiveAbove:
		default:
			return nil, core.Errorf(core.KindFormatError, "format.declare", name, "range %d: %s is not a valid low bound", i+1, r.Low.Kind)
		}
		switch r.High.Kind {
		case PosInf, Inclusive, ExclusiveBelow:
		default:
			return nil, core.Errorf(core.KindFormatError, "format.declare", name, "range %d: %s is not a valid high bound", i+1, r.High.Kind)
		}
		if r.isMissingRange() {
			continue
		}
		for _, b := range []Bound{r.Low, r.High} {
			if !b.bounded() {
				continue
			}
			if b.Value.IsMissing() {
				return nil, core.Errorf(core.KindFormatError, "format.declare", name, "range %d: missing bound must be paired with a missing bound", i+1)
			}
			if t.kind == value.TagMissing {
				t.kind = b.Value.Tag()
			} else if t.kind != b.Value.Tag() {
				return nil, core.Errorf(core.KindTypeError, "format.declare", name, "range %d mixes numeric and character bounds", i+1)
			}
		}
		if r.Low.bounded() && r.High.bounded() && value.Compare(r.Low.Value, r.High.Value) > 0 {
			return nil, core.Errorf(core.KindFormatError, "format.declare", name, "range %d: low %s exceeds high %s", i+1, r.Low.Value, r.High.Value)
		}
	}
	return t, nil
}

// IsCharacter reports whether the table maps character values.
func (t *Table) IsCharacter() bool { return t.kind == value.TagCharacter }

// Match returns the label of the first range containing v. Comparing a
// value against ranges of the other type is a TypeError.
func (t *Table) Match(v value.Value) (string, bool, error) {
	if !v.IsMissing() && t.kind != value.TagMissing && v.Tag() != t.kind {
		return "", false, core.Errorf(core.KindTypeError, "format.render", t.Name,
			"%s value %q against %s ranges", tagName(v.Tag()), v.String(), tagName(t.kind))
	}
	for _, r := range t.Ranges {
		if r.contains(v) {
			return r.Label, true, nil
		}
	}
	return "", false, nil
}

func (r Range) contains(v value.Value) bool {
	if r.Other {
		return true
	}
	if v.IsMissing() || r.isMissingRange() {
		return v.IsMissing() && r.isMissingRange()
	}
	return lowAdmits(r.Low, v) && highAdmits(r.High, v)
}

func lowAdmits(b Bound, v value.Value) bool {
	switch b.Kind {
	case Inclusive:
		return value.Compare(v, b.Value) >= 0
	case ExclusiveAbove:
		return value.Compare(v, b.Value) > 0
	}
	return true
}

func highAdmits(b Bound, v value.Value) bool {
	switch b.Kind {
	case Inclusive:
		return value.Compare(v, b.Value) <= 0
	case ExclusiveBelow:
		return value.Compare(v, b.Value) < 0
	}
	return true
}

func tagName(t value.Tag) string {
	switch t {
	case value.TagNumeric:
		return "numeric"
	case value.TagCharacter:
		return "character"
	}
	return "missing"
}

// Overlaps returns the index pairs of ranges whose value sets intersect.
// Other ranges are not considered.
func (t *Table) Overlaps() [][2]int {
	var pairs [][2]int
	for i := 0; i < len(t.Ranges); i++ {
		for j := i + 1; j < len(t.Ranges); j++ {
			if intersect(t.Ranges[i], t.Ranges[j]) {
				pairs = append(pairs, [2]int{i, j})
			}
		}
	}
	return pairs
}

type edge struct {
	val       value.Value
	open      bool
	unbounded bool
}

func lowerEdge(b Bound) edge {
	return edge{val: b.Value, open: b.Kind == ExclusiveAbove, unbounded: !b.bounded()}
}

func upperEdge(b Bound) edge {
	return edge{val: b.Value, open: b.Kind == ExclusiveBelow, unbounded: !b.bounded()}
}

func intersect(a, b Range) bool {
	if a.Other || b.Other {
		return false
	}
	if a.isMissingRange() || b.isMissingRange() {
		return a.isMissingRange() && b.isMissingRange()
	}

	lo := tighterLower(lowerEdge(a.Low), lowerEdge(b.Low))
	hi := tighterUpper(upperEdge(a.High), upperEdge(b.High))
	if lo.unbounded || hi.unbounded {
		return true
	}
	c := value.Compare(lo.val, hi.val)
	return c < 0 || (c == 0 && !lo.open && !hi.open)
}

func tighterLower(x, y edge) edge {
	switch {
	case x.unbounded:
		return y
	case y.unbounded:
		return x
	}
	c := value.Compare(x.val, y.val)
	if c == 0 {
		return edge{val: x.val, open: x.open || y.open}
	}
	if c > 0 {
		return x
	}
	return y
}

func tighterUpper(x, y edge) edge {
	switch {
	case x.unbounded:
		return y
	case y.unbounded:
		return x
	}
	c := value.Compare(x.val, y.val)
	if c == 0 {
		return edge{val: x.val, open: x.open || y.open}
	}
	if c < 0 {
		return x
	}
	return y
}
