package value

import (
	"strconv"
	"strings"
)

// MissingGlyph is how Missing is displayed.
const MissingGlyph = "."

// DisplayOptions controls numeric rendering.
type DisplayOptions struct {
	// Decimals is the number of digits after the decimal point.
	Decimals int
	// TrimZeros strips trailing fractional zeros (and a bare point).
	TrimZeros bool
}

// DefaultDisplay is the legacy two-decimal convention: 150 renders as
// "150", 1/3 as "0.33".
var DefaultDisplay = DisplayOptions{Decimals: 2, TrimZeros: true}

// Display renders v: numbers in fixed notation, strings raw, Missing as
// MissingGlyph.
func (v Value) Display(opts DisplayOptions) string {
	switch v.tag {
	case TagNumeric:
		return formatFixed(v.num, opts)
	case TagCharacter:
		return v.str
	}
	return MissingGlyph
}

// String renders v with DefaultDisplay.
func (v Value) String() string {
	return v.Display(DefaultDisplay)
}

func formatFixed(f float64, opts DisplayOptions) string {
	dec := opts.Decimals
	if dec < 0 {
		dec = 0
	}
	s := strconv.FormatFloat(f, 'f', dec, 64)
	if opts.TrimZeros && strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if strings.TrimLeft(s, "-0.") == "" && strings.HasPrefix(s, "-") {
		s = s[1:]
	}
	return s
}
