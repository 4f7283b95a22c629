package output

import (
	"cmp"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/leapstack-labs/leapstep/internal/engine"
	"github.com/leapstack-labs/leapstep/pkg/dataset"
	"github.com/leapstack-labs/leapstep/pkg/group"
	"github.com/leapstack-labs/leapstep/pkg/value"
	"github.com/mattn/go-runewidth"
)

var (
	_ engine.Printer    = (*Renderer)(nil)
	_ engine.LogPrinter = (*Renderer)(nil)
)

// grid is a rendered listing: display strings for text formats and raw
// values for JSON. Headers replace column names in text and markdown.
type grid struct {
	title   string
	columns []string
	headers []string
	numeric []bool
	cells   [][]string
	raw     [][]any
	notes   []string
}

// PrintDataset renders a dataset listing with an Obs column. Variables with
// a format are rendered through the listing's format catalog.
func (r *Renderer) PrintDataset(l engine.Listing) error {
	g, err := datasetGrid(l)
	if err != nil {
		return err
	}
	return r.renderGrid(g)
}

// PrintFreq renders a one-way frequency table.
func (r *Renderer) PrintFreq(title string, t *group.FreqTable) error {
	return r.renderGrid(freqGrid(title, t))
}

// PrintLog shows the PUT lines of a DATA step.
func (r *Renderer) PrintLog(step string, lines []string) {
	switch r.EffectiveMode() {
	case ModeJSON:
		_ = r.JSON(struct {
			Step string   `json:"step"`
			Log  []string `json:"log"`
		}{step, lines})
	case ModeCSV:
		for _, l := range lines {
			_, _ = fmt.Fprintln(r.errw, l)
		}
	case ModeMarkdown:
		r.Println("```")
		for _, l := range lines {
			r.Println(l)
		}
		r.Println("```")
		r.Println()
	default:
		for _, l := range lines {
			r.Println(l)
		}
		r.Println()
	}
}

func datasetGrid(l engine.Listing) (*grid, error) {
	ds := l.Dataset
	vars := ds.Catalog.Vars()
	display := value.DefaultDisplay
	if l.Catalog != nil {
		display = l.Catalog.Display()
	}

	g := &grid{
		title:   l.Title,
		columns: make([]string, 0, len(vars)+1),
		numeric: make([]bool, 0, len(vars)+1),
	}
	g.columns = append(g.columns, "Obs")
	g.headers = append(g.headers, "Obs")
	g.numeric = append(g.numeric, true)
	for _, v := range vars {
		g.columns = append(g.columns, v.Name)
		g.headers = append(g.headers, cmp.Or(v.Label, v.Name))
		g.numeric = append(g.numeric, v.Kind == value.Numeric)
	}

	for i, row := range ds.Rows {
		cells := make([]string, 1, len(vars)+1)
		raw := make([]any, 1, len(vars)+1)
		cells[0] = fmt.Sprint(i + 1)
		raw[0] = i + 1
		for j, v := range vars {
			val := row.At(j)
			s, err := cellText(l, v, val, display)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", v.Name, err)
			}
			cells = append(cells, s)
			raw = append(raw, val.Any())
		}
		g.cells = append(g.cells, cells)
		g.raw = append(g.raw, raw)
	}
	g.notes = append(g.notes, fmt.Sprintf("(%d rows)", ds.Len()))
	return g, nil
}

func cellText(l engine.Listing, v dataset.Variable, val value.Value, display value.DisplayOptions) (string, error) {
	if v.Format == "" || l.Catalog == nil {
		return val.Display(display), nil
	}
	return l.Catalog.Render(v.Format, val)
}

func freqGrid(title string, t *group.FreqTable) *grid {
	g := &grid{
		title:   title,
		columns: []string{t.Var, "Frequency", "Percent", "Cumulative Frequency", "Cumulative Percent"},
		numeric: []bool{false, true, true, true, true},
	}
	for _, lv := range t.Levels {
		g.cells = append(g.cells, []string{
			lv.Value.String(),
			fmt.Sprint(lv.Frequency),
			fmt.Sprintf("%.2f", lv.Percent),
			fmt.Sprint(lv.CumFrequency),
			fmt.Sprintf("%.2f", lv.CumPercent),
		})
		g.raw = append(g.raw, []any{lv.Value.Any(), lv.Frequency, lv.Percent, lv.CumFrequency, lv.CumPercent})
	}
	if t.Missing > 0 {
		g.notes = append(g.notes, fmt.Sprintf("Frequency Missing = %d", t.Missing))
	}
	return g
}

func (r *Renderer) renderGrid(g *grid) error {
	switch r.EffectiveMode() {
	case ModeJSON:
		return r.gridJSON(g)
	case ModeCSV:
		return r.gridCSV(g)
	case ModeMarkdown:
		r.gridMarkdown(g)
		return nil
	default:
		r.gridText(g)
		return nil
	}
}

func (r *Renderer) gridText(g *grid) {
	if g.title != "" {
		r.Println(r.styles.Title.Render(g.title))
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.w)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault
	t.SetAllowedRowLength(r.width)

	header := make(table.Row, len(g.columns))
	configs := make([]table.ColumnConfig, 0, len(g.columns))
	for i, col := range g.headerRow() {
		header[i] = col
		if g.numeric[i] {
			configs = append(configs, table.ColumnConfig{Number: i + 1, Align: text.AlignRight})
		}
	}
	t.AppendHeader(header)
	t.SetColumnConfigs(configs)

	for _, cells := range g.cells {
		row := make(table.Row, len(cells))
		for i, c := range cells {
			if c == value.MissingGlyph {
				row[i] = r.styles.Missing.Render(c)
				continue
			}
			row[i] = c
		}
		t.AppendRow(row)
	}
	t.Render()

	for _, n := range g.notes {
		r.Println(r.styles.Muted.Render(n))
	}
	r.Println()
}

func (r *Renderer) gridMarkdown(g *grid) {
	if g.title != "" {
		r.Println(FormatHeader(2, g.title))
		r.Println()
	}

	headers := g.headerRow()
	widths := make([]int, len(g.columns))
	for i, col := range headers {
		widths[i] = max(3, runewidth.StringWidth(col))
	}
	for _, cells := range g.cells {
		for i, c := range cells {
			widths[i] = max(widths[i], runewidth.StringWidth(escapeMarkdown(c)))
		}
	}

	r.Println(markdownRow(headers, widths, g.numeric))
	seps := make([]string, len(g.columns))
	for i, w := range widths {
		if g.numeric[i] {
			seps[i] = strings.Repeat("-", w-1) + ":"
		} else {
			seps[i] = strings.Repeat("-", w)
		}
	}
	r.Println("| " + strings.Join(seps, " | ") + " |")
	for _, cells := range g.cells {
		r.Println(markdownRow(cells, widths, g.numeric))
	}

	r.Println()
	for _, n := range g.notes {
		r.Println(n)
	}
	if len(g.notes) > 0 {
		r.Println()
	}
}

func (g *grid) headerRow() []string {
	if g.headers != nil {
		return g.headers
	}
	return g.columns
}

func markdownRow(cells []string, widths []int, numeric []bool) string {
	padded := make([]string, len(cells))
	for i, c := range cells {
		c = escapeMarkdown(c)
		if numeric[i] {
			padded[i] = runewidth.FillLeft(c, widths[i])
		} else {
			padded[i] = runewidth.FillRight(c, widths[i])
		}
	}
	return "| " + strings.Join(padded, " | ") + " |"
}

func escapeMarkdown(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func (r *Renderer) gridCSV(g *grid) error {
	w := csv.NewWriter(r.w)
	if err := w.Write(g.columns); err != nil {
		return err
	}
	if err := w.WriteAll(g.cells); err != nil {
		return err
	}
	return w.Error()
}

// listingJSON is the JSON shape of a listing.
type listingJSON struct {
	Title   string   `json:"title,omitempty"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	Notes   []string `json:"notes,omitempty"`
}

func (r *Renderer) gridJSON(g *grid) error {
	rows := g.raw
	if rows == nil {
		rows = [][]any{}
	}
	return r.JSON(listingJSON{Title: g.title, Columns: g.columns, Rows: rows, Notes: g.notes})
}
