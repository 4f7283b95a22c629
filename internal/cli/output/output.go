// Package output renders command results for terminals, markdown consumers
// and machine readers.
//
// Auto mode picks styled text when stdout is a terminal and markdown
// otherwise, so piping leapstep into a file or an agent gives plain,
// well-formed output.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Mode selects the output format.
type Mode string

// OutputMode is kept as an alias for callers that spell the type in full.
type OutputMode = Mode //nolint:revive // established name

// Output modes.
const (
	ModeAuto     Mode = "auto"
	ModeText     Mode = "text"
	ModeMarkdown Mode = "markdown"
	ModeJSON     Mode = "json"
	ModeCSV      Mode = "csv"
)

// ParseMode validates a mode name. The empty string is auto.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeText, ModeMarkdown, ModeJSON, ModeCSV:
		return m, nil
	case "md":
		return ModeMarkdown, nil
	}
	return ModeAuto, fmt.Errorf("unknown output mode %q", s)
}

// defaultWidth is used when the terminal width cannot be determined.
const defaultWidth = 120

// Renderer writes command output in the selected mode.
type Renderer struct {
	w      io.Writer
	errw   io.Writer
	mode   Mode
	isTTY  bool
	width  int
	styles *Styles
}

// NewRenderer creates a renderer, detecting whether w is a terminal.
func NewRenderer(w, errw io.Writer, mode Mode) *Renderer {
	return NewRendererWithTTY(w, errw, isTerminal(w), mode)
}

// NewRendererWithTTY creates a renderer with an explicit terminal state.
func NewRendererWithTTY(w, errw io.Writer, isTTY bool, mode Mode) *Renderer {
	if mode == "" {
		mode = ModeAuto
	}
	r := &Renderer{
		w:     w,
		errw:  errw,
		mode:  mode,
		isTTY: isTTY,
		width: terminalWidth(w),
	}

	lr := lipgloss.NewRenderer(w)
	if isTTY && r.EffectiveMode() == ModeText {
		lr.SetColorProfile(termenv.NewOutput(w).EnvColorProfile())
	} else {
		lr.SetColorProfile(termenv.Ascii)
	}
	r.styles = newStyles(lr)
	return r
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func terminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return defaultWidth
}

// EffectiveMode resolves auto to text or markdown.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode != ModeAuto {
		return r.mode
	}
	if r.isTTY {
		return ModeText
	}
	return ModeMarkdown
}

// Styles returns the styles bound to the renderer's color profile.
func (r *Renderer) Styles() *Styles { return r.styles }

// Writer returns the stdout writer.
func (r *Renderer) Writer() io.Writer { return r.w }

// IsTTY reports whether stdout is a terminal.
func (r *Renderer) IsTTY() bool { return r.isTTY }

// Width is the terminal width used to bound tables.
func (r *Renderer) Width() int { return r.width }

// Println writes a line to stdout.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.w, a...)
}

// Printf writes formatted text to stdout.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.w, format, a...)
}

// Header writes a section header. Level 1 is the largest.
func (r *Renderer) Header(level int, s string) {
	switch r.EffectiveMode() {
	case ModeMarkdown:
		r.Println(FormatHeader(level, s))
		r.Println()
	case ModeJSON, ModeCSV:
	default:
		style := r.styles.Header2
		if level <= 1 {
			style = r.styles.Header1
		}
		r.Println(style.Render(s))
	}
}

// Success writes a success message. In markdown it is plain text.
func (r *Renderer) Success(s string) {
	r.status(r.styles.Success, "✓ ", s)
}

// Warning writes a warning to stderr.
func (r *Renderer) Warning(s string) {
	if r.EffectiveMode() == ModeText {
		_, _ = fmt.Fprintln(r.errw, r.styles.Warning.Render("! "+s))
		return
	}
	_, _ = fmt.Fprintln(r.errw, "Warning: "+s)
}

// Error writes an error to stderr.
func (r *Renderer) Error(s string) {
	if r.EffectiveMode() == ModeText {
		_, _ = fmt.Fprintln(r.errw, r.styles.Error.Render("✗ "+s))
		return
	}
	_, _ = fmt.Fprintln(r.errw, "Error: "+s)
}

// Muted writes secondary information.
func (r *Renderer) Muted(s string) {
	r.status(r.styles.Muted, "", s)
}

func (r *Renderer) status(style lipgloss.Style, prefix, s string) {
	switch r.EffectiveMode() {
	case ModeJSON, ModeCSV:
		// Machine formats keep stdout parseable.
		_, _ = fmt.Fprintln(r.errw, s)
	case ModeMarkdown:
		r.Println(s)
	default:
		r.Println(style.Render(prefix + s))
	}
}

// StatusLine writes "label: value" with the label styled.
func (r *Renderer) StatusLine(label, value string) {
	if r.EffectiveMode() == ModeText {
		r.Printf("%s %s\n", r.styles.Bold.Render(label+":"), value)
		return
	}
	r.Println(FormatKeyValue(label, value))
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// FormatHeader returns a markdown header.
func FormatHeader(level int, s string) string {
	if level < 1 {
		level = 1
	}
	return strings.Repeat("#", level) + " " + s
}

// FormatKeyValue returns a markdown "**key:** value" line.
func FormatKeyValue(key, value string) string {
	return fmt.Sprintf("**%s:** %s", key, value)
}
