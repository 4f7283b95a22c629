package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapstep/internal/engine"
	"github.com/spf13/cobra"
)

// Ad-hoc procedure commands run one PROC step against LIB.TABLE outside a
// program run. Formats declared by the program file are available.

// NewPrintCommand creates the print command.
func NewPrintCommand() *cobra.Command {
	p := &engine.PrintStep{}
	var formats []string

	cmd := &cobra.Command{
		Use:   "print <LIB.TABLE>",
		Short: "List a dataset",
		Example: `  leapstep print raw.people
  leapstep print raw.people --var name,sal --obs 10
  leapstep print raw.people --format sal=band.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p.Input = args[0]
			p.Var = splitList(p.Var)
			var err error
			if p.Format, err = parseFormatFlags(formats); err != nil {
				return err
			}
			return execAdHoc(cmd, &engine.Step{Kind: engine.KindPrint, Print: p})
		},
	}

	cmd.Flags().StringSliceVar(&p.Var, "var", nil, "Variables to list, in order")
	cmd.Flags().StringArrayVarP(&formats, "format", "f", nil, "Apply a format as VAR=FORMAT (repeatable)")
	cmd.Flags().IntVar(&p.Obs, "obs", 0, "List at most this many rows")
	cmd.Flags().StringVar(&p.Title, "title", "", "Listing title")
	return cmd
}

// NewSortCommand creates the sort command.
func NewSortCommand() *cobra.Command {
	s := &engine.SortStep{}

	cmd := &cobra.Command{
		Use:   "sort <LIB.TABLE>",
		Short: "Sort a dataset",
		Long: `Sort a dataset by one or more variables. Prefix a variable with "-"
or precede it with "descending" to sort it in descending order. Without
--out the input dataset is replaced.`,
		Example: `  leapstep sort raw.people --by dept,-sal --out raw.people_sorted
  leapstep sort raw.people --by dept --nodupkey`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s.Input = args[0]
			s.By = splitList(s.By)
			return execAdHoc(cmd, &engine.Step{Kind: engine.KindSort, Sort: s})
		},
	}

	cmd.Flags().StringSliceVar(&s.By, "by", nil, "Sort keys")
	cmd.Flags().StringVar(&s.Out, "out", "", "Output dataset (default: replace the input)")
	cmd.Flags().BoolVar(&s.NoDupKey, "nodupkey", false, "Keep only the first row of each key")
	_ = cmd.MarkFlagRequired("by")
	return cmd
}

// NewMeansCommand creates the means command.
func NewMeansCommand() *cobra.Command {
	m := &engine.MeansStep{}

	cmd := &cobra.Command{
		Use:   "means <LIB.TABLE>",
		Short: "Summary statistics by group",
		Long: `Compute statistics of numeric variables, per combination of the class
variables. Statistics: n, nonmissing, nmiss, sum, mean, median, min,
max, range, std and stdpop. Without --out the result is listed.`,
		Example: `  leapstep means raw.people --class dept --var sal --stats n,mean,max
  leapstep means raw.people --class dept --out work.summary`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m.Input = args[0]
			m.Class = splitList(m.Class)
			m.Var = splitList(m.Var)
			m.Stats = splitList(m.Stats)
			return execAdHoc(cmd, &engine.Step{Kind: engine.KindMeans, Means: m})
		},
	}

	cmd.Flags().StringSliceVar(&m.Class, "class", nil, "Grouping variables")
	cmd.Flags().StringSliceVar(&m.Var, "var", nil, "Analysis variables (default: every numeric non-class variable)")
	cmd.Flags().StringSliceVar(&m.Stats, "stats", nil, "Statistics (default: n, mean, std, min, max)")
	cmd.Flags().StringVar(&m.Out, "out", "", "Store the result instead of listing it")
	cmd.Flags().BoolVar(&m.Freq, "freq", false, "Add a _FREQ_ column with group sizes")
	cmd.Flags().StringVar(&m.Title, "title", "", "Listing title")
	return cmd
}

// NewFreqCommand creates the freq command.
func NewFreqCommand() *cobra.Command {
	f := &engine.FreqStep{}

	cmd := &cobra.Command{
		Use:     "freq <LIB.TABLE>",
		Short:   "One-way frequency tables",
		Example: `  leapstep freq raw.people --tables dept,name --missing`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Input = args[0]
			f.Tables = splitList(f.Tables)
			return execAdHoc(cmd, &engine.Step{Kind: engine.KindFreq, Freq: f})
		},
	}

	cmd.Flags().StringSliceVarP(&f.Tables, "tables", "t", nil, "Variables to tabulate")
	cmd.Flags().BoolVar(&f.Missing, "missing", false, "Count missing values as a level")
	cmd.Flags().StringVar(&f.Out, "out", "", "Also store the tables as datasets")
	_ = cmd.MarkFlagRequired("tables")
	return cmd
}

func execAdHoc(cmd *cobra.Command, s *engine.Step) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	out, err := cmdCtx.Engine.ExecStep(cmd.Context(), s)
	if err != nil {
		return err
	}
	for _, w := range out.Warnings {
		cmdCtx.Renderer.Warning(w.Error())
	}
	for _, name := range out.Outputs {
		cmdCtx.Renderer.Success(fmt.Sprintf("wrote %s", name))
	}
	return nil
}

// parseFormatFlags reads VAR=FORMAT pairs.
func parseFormatFlags(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	formats := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, fmtName, ok := strings.Cut(p, "=")
		name, fmtName = strings.TrimSpace(name), strings.TrimSpace(fmtName)
		if !ok || name == "" || fmtName == "" {
			return nil, fmt.Errorf("invalid --format %q (want VAR=FORMAT)", p)
		}
		formats[name] = fmtName
	}
	return formats, nil
}
