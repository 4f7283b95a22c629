package format

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapstep/pkg/core"
	"github.com/leapstack-labs/leapstep/pkg/value"
)

// OverlapPolicy decides what declaring a table with overlapping ranges does.
type OverlapPolicy int

// Overlap policies. Whatever the policy, lookup stays first-match.
const (
	OverlapIgnore OverlapPolicy = iota
	OverlapWarn
	OverlapReject
)

// ParseOverlapPolicy parses ignore, warn or reject. Empty means ignore.
func ParseOverlapPolicy(s string) (OverlapPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ignore":
		return OverlapIgnore, nil
	case "warn":
		return OverlapWarn, nil
	case "reject":
		return OverlapReject, nil
	}
	return OverlapIgnore, fmt.Errorf("unknown overlap policy %q (want ignore, warn or reject)", s)
}

func (p OverlapPolicy) String() string {
	switch p {
	case OverlapWarn:
		return "warn"
	case OverlapReject:
		return "reject"
	}
	return "ignore"
}

// Options configures a Catalog.
type Options struct {
	Overlap OverlapPolicy
	// Display renders values no range matched.
	Display value.DisplayOptions
	// NoBuiltins hides DATE9, COMMA and the other builtin formats.
	NoBuiltins bool
	Logger     *slog.Logger
}

// Catalog holds the formats visible to a program.
type Catalog struct {
	tables   map[string]*Table
	opts     Options
	logger   *slog.Logger
	builtins bool
}

// NewCatalog returns an empty catalog. A zero Options.Display falls back to
// value.DefaultDisplay.
func NewCatalog(opts Options) *Catalog {
	if opts.Display == (value.DisplayOptions{}) {
		opts.Display = value.DefaultDisplay
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Catalog{
		tables:   make(map[string]*Table),
		opts:     opts,
		logger:   logger,
		builtins: !opts.NoBuiltins,
	}
}

// normalizeName folds case and drops the trailing period used when a
// format is referenced ("grade." and "GRADE" are the same format).
func normalizeName(name string) string {
	return strings.ToUpper(strings.TrimSuffix(strings.TrimSpace(name), "."))
}

// Declare stores ranges under name, fully replacing any earlier table of
// that name. Overlapping ranges are handled per the overlap policy: under
// OverlapWarn the table is stored and a *core.Warning returned, under
// OverlapReject nothing is stored and a FormatOverlap error returned.
func (c *Catalog) Declare(name string, ranges []Range) error {
	key := normalizeName(name)
	if key == "" {
		return core.Errorf(core.KindFormatError, "format.declare", name, "format name is required")
	}
	t, err := NewTable(strings.TrimSuffix(strings.TrimSpace(name), "."), ranges)
	if err != nil {
		return err
	}

	var warning error
	if c.opts.Overlap != OverlapIgnore {
		if pairs := t.Overlaps(); len(pairs) > 0 {
			desc := describeOverlaps(t, pairs)
			if c.opts.Overlap == OverlapReject {
				return core.Errorf(core.KindFormatOverlap, "format.declare", t.Name, "%s", desc)
			}
			c.logger.Warn("format has overlapping ranges", "format", t.Name, "overlaps", desc)
			warning = core.Warnf(core.KindFormatOverlap, "format %s: %s", t.Name, desc)
		}
	}

	c.tables[key] = t
	c.logger.Debug("declared format", "format", t.Name, "ranges", len(ranges))
	return warning
}

func describeOverlaps(t *Table, pairs [][2]int) string {
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = fmt.Sprintf("range %d (%s) overlaps range %d (%s)",
			p[0]+1, t.Ranges[p[0]], p[1]+1, t.Ranges[p[1]])
	}
	return strings.Join(parts, "; ")
}

// Lookup returns the user table declared under name.
func (c *Catalog) Lookup(name string) (*Table, bool) {
	t, ok := c.tables[normalizeName(name)]
	return t, ok
}

// Has reports whether name resolves to a user table or a builtin.
func (c *Catalog) Has(name string) bool {
	if _, ok := c.Lookup(name); ok {
		return true
	}
	if !c.builtins {
		return false
	}
	_, ok := parseBuiltin(name)
	return ok
}

// Names returns declared table names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.tables))
	for _, t := range c.tables {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}

// Tables returns the declared tables sorted by name.
func (c *Catalog) Tables() []*Table {
	out := make([]*Table, 0, len(c.tables))
	for _, t := range c.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Display returns the options used for unmatched values.
func (c *Catalog) Display() value.DisplayOptions { return c.opts.Display }

// Render formats v through the named format. With no matching range the
// value's own display string is returned. User tables shadow builtins.
func (c *Catalog) Render(name string, v value.Value) (string, error) {
	if t, ok := c.Lookup(name); ok {
		label, matched, err := t.Match(v)
		if err != nil {
			return "", err
		}
		if matched {
			return label, nil
		}
		return v.Display(c.opts.Display), nil
	}
	if c.builtins {
		if b, ok := parseBuiltin(name); ok {
			return b.render(v)
		}
	}
	return "", &core.Error{Kind: core.KindUnknownFormat, Op: "format.render", Name: name}
}

// Clone returns a catalog with the same options and a copy of the table map.
// Tables themselves are immutable once declared.
func (c *Catalog) Clone() *Catalog {
	cp := NewCatalog(c.opts)
	for k, t := range c.tables {
		cp.tables[k] = t
	}
	return cp
}
