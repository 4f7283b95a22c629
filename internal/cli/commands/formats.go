package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapstep/internal/cli/output"
	"github.com/leapstack-labs/leapstep/pkg/format"
	"github.com/spf13/cobra"
)

// NewFormatsCommand creates the formats command.
func NewFormatsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formats [name]",
		Short: "Show declared formats",
		Long: `List the formats the program declares before its first step, or the
ranges of one format. Formats declared by format steps appear once the
program has run them, so they are not listed here.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			tables := cmdCtx.Engine.Formats().Tables()
			if len(args) == 1 {
				t, ok := cmdCtx.Engine.Formats().Lookup(args[0])
				if !ok {
					return fmt.Errorf("format %s is not declared", args[0])
				}
				tables = []*format.Table{t}
			}
			return renderFormats(cmdCtx.Renderer, tables)
		},
	}
	return cmd
}

type formatOutput struct {
	Name   string        `json:"name"`
	Kind   string        `json:"kind"`
	Ranges []rangeOutput `json:"ranges"`
}

type rangeOutput struct {
	Range string `json:"range"`
	Label string `json:"label"`
}

func renderFormats(r *output.Renderer, tables []*format.Table) error {
	out := make([]formatOutput, 0, len(tables))
	for _, t := range tables {
		f := formatOutput{Name: t.Name, Kind: "numeric"}
		if t.IsCharacter() {
			f.Kind = "character"
		}
		for _, rg := range t.Ranges {
			f.Ranges = append(f.Ranges, rangeOutput{Range: rg.String(), Label: rg.Label})
		}
		out = append(out, f)
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Formats"))
		r.Println()
		for _, f := range out {
			r.Println(output.FormatHeader(2, fmt.Sprintf("%s (%s)", f.Name, f.Kind)))
			for _, rg := range f.Ranges {
				r.Printf("- `%s` = %s\n", rg.Range, rg.Label)
			}
			r.Println()
		}
	default:
		styles := r.Styles()
		if len(out) == 0 {
			r.Muted("No formats declared.")
			return nil
		}
		for _, f := range out {
			r.Println(styles.Header2.Render(f.Name) + " " + styles.Muted.Render(f.Kind))
			width := 0
			for _, rg := range f.Ranges {
				width = max(width, len(rg.Range))
			}
			for _, rg := range f.Ranges {
				r.Printf("  %s%s = %s\n", rg.Range, strings.Repeat(" ", width-len(rg.Range)), rg.Label)
			}
		}
	}
	return nil
}
