package format

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/itchyny/timefmt-go"
	"github.com/leapstack-labs/leapstep/pkg/core"
	"github.com/leapstack-labs/leapstep/pkg/value"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// builtinPattern matches NAMEw.d references such as DATE9., COMMA10.2 or
// DOLLAR.2.
var builtinPattern = regexp.MustCompile(`^([A-Z]+)(\d*)(?:\.(\d*))?$`)

type builtin struct {
	name     string
	width    int
	decimals int
}

var dateLayouts = map[string]map[int]string{
	"DATE":   {0: "%d%b%Y", 9: "%d%b%Y", 7: "%d%b%y", 11: "%d-%b-%Y"},
	"YYMMDD": {0: "%Y-%m-%d", 10: "%Y-%m-%d", 8: "%y-%m-%d", 6: "%y%m%d"},
	"MMDDYY": {0: "%m/%d/%Y", 10: "%m/%d/%Y", 8: "%m/%d/%y", 6: "%m%d%y"},
}

var numericBuiltins = map[string]bool{"COMMA": true, "DOLLAR": true, "PERCENT": true}

func parseBuiltin(name string) (builtin, bool) {
	ref := strings.ToUpper(strings.TrimSpace(name))
	m := builtinPattern.FindStringSubmatch(ref)
	if m == nil {
		return builtin{}, false
	}
	b := builtin{name: m[1]}
	if m[2] != "" {
		b.width, _ = strconv.Atoi(m[2])
	}
	if m[3] != "" {
		b.decimals, _ = strconv.Atoi(m[3])
	}
	if layouts, ok := dateLayouts[b.name]; ok {
		if _, ok := layouts[b.width]; !ok {
			return builtin{}, false
		}
		return b, true
	}
	return b, numericBuiltins[b.name]
}

// render ignores the width except to pick a date layout.
func (b builtin) render(v value.Value) (string, error) {
	if v.IsMissing() {
		return value.MissingGlyph, nil
	}
	f, ok := v.Float()
	if !ok {
		return "", core.Errorf(core.KindTypeError, "format.render", b.name, "character value %q for numeric format", v.Str())
	}

	if layouts, ok := dateLayouts[b.name]; ok {
		t, _ := v.Time()
		s := timefmt.Format(t, layouts[b.width])
		if b.name == "DATE" {
			s = strings.ToUpper(s)
		}
		return s, nil
	}

	p := message.NewPrinter(language.English)
	pattern := fmt.Sprintf("%%.%df", b.decimals)
	switch b.name {
	case "COMMA":
		return p.Sprintf(pattern, f), nil
	case "DOLLAR":
		s := "$" + p.Sprintf(pattern, math.Abs(f))
		if f < 0 {
			s = "-" + s
		}
		return s, nil
	case "PERCENT":
		return p.Sprintf(pattern, f*100) + "%", nil
	}
	return v.String(), nil
}
