package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/leapstep/internal/engine"
	starctx "github.com/leapstack-labs/leapstep/internal/starlark"
	"github.com/spf13/cobra"
)

const (
	replPrompt         = "leapstep> "
	replContinuePrompt = "     ...> "
	replDefaultObs     = 10
)

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	var obs int

	cmd := &cobra.Command{
		Use:   "repl [LIB.TABLE]",
		Short: "Interactive DATA step session",
		Long: `Start an interactive session around a current dataset.

Each entered block runs as a DATA step over the current dataset and its
output becomes the new current dataset, which is then listed. A line
ending in ":" opens a block that a blank line closes.`,
		Example: `  leapstep repl raw.people
  leapstep> row.bonus = row.sal / 10
  leapstep> if row.sal > 150:
       ...>     delete()
       ...>`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			s := newREPLSession(cmdCtx.Engine, cmd.OutOrStdout(), cmd.ErrOrStderr(), obs)
			if len(args) == 1 {
				if err := s.use(cmd.Context(), args[0]); err != nil {
					return err
				}
			}
			return runREPL(cmd.Context(), cmdCtx, s)
		},
	}

	cmd.Flags().IntVar(&obs, "obs", replDefaultObs, "Rows listed after each block")
	return cmd
}

func runREPL(ctx context.Context, cc *CommandContext, s *replSession) error {
	historyFile := ""
	if cc.Cfg.StatePath != "" && cc.Cfg.StatePath != ":memory:" {
		historyFile = filepath.Join(filepath.Dir(cc.Cfg.StatePath), "repl_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    newREPLCompleter(cc.Engine),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdout:          s.out,
		Stderr:          s.errOut,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintln(s.out, "LeapStep DATA step REPL")
	_, _ = fmt.Fprintln(s.out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(s.out)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			s.buf.Reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if s.handleLine(ctx, line) {
			return nil
		}
		if s.buf.Len() > 0 {
			rl.SetPrompt(replContinuePrompt)
		} else {
			rl.SetPrompt(replPrompt)
		}
	}
}

// replSession holds the state of one REPL: the dataset stack and the
// block being typed.
type replSession struct {
	eng    *engine.Engine
	out    io.Writer
	errOut io.Writer
	obs    int

	// history is the stack of current datasets; the top is current.
	history []string
	gen     int
	buf     strings.Builder
}

func newREPLSession(eng *engine.Engine, out, errOut io.Writer, obs int) *replSession {
	if obs <= 0 {
		obs = replDefaultObs
	}
	return &replSession{eng: eng, out: out, errOut: errOut, obs: obs}
}

func (s *replSession) current() string {
	if len(s.history) == 0 {
		return ""
	}
	return s.history[len(s.history)-1]
}

// handleLine feeds one input line. It reports whether the session ends.
func (s *replSession) handleLine(ctx context.Context, line string) bool {
	trimmed := strings.TrimSpace(line)

	if s.buf.Len() == 0 {
		switch {
		case trimmed == "":
			return false
		case strings.HasPrefix(trimmed, "."):
			return s.dotCommand(ctx, trimmed)
		case !strings.HasSuffix(trimmed, ":"):
			s.runBlock(ctx, line)
			return false
		}
	}

	if trimmed == "" {
		code := s.buf.String()
		s.buf.Reset()
		s.runBlock(ctx, code)
		return false
	}
	s.buf.WriteString(line)
	s.buf.WriteString("\n")
	return false
}

// runBlock executes code as a DATA step over the current dataset and lists
// the result.
func (s *replSession) runBlock(ctx context.Context, code string) {
	s.gen++
	out := fmt.Sprintf("work._repl%d", s.gen)

	_, err := s.eng.ExecStep(ctx, &engine.Step{
		Name: fmt.Sprintf("repl_%d", s.gen),
		Kind: engine.KindData,
		Data: &engine.DataStep{Out: out, Set: s.current(), Code: code},
	})
	if err != nil {
		s.errorf("%v", err)
		return
	}
	s.history = append(s.history, out)
	s.list(ctx, s.obs)
}

func (s *replSession) list(ctx context.Context, obs int) {
	if s.current() == "" {
		s.errorf("no current dataset (use .use LIB.TABLE)")
		return
	}
	_, err := s.eng.ExecStep(ctx, &engine.Step{
		Kind:  engine.KindPrint,
		Print: &engine.PrintStep{Input: s.current(), Obs: obs},
	})
	if err != nil {
		s.errorf("%v", err)
	}
}

func (s *replSession) use(ctx context.Context, name string) error {
	if _, err := s.eng.Dataset(ctx, name); err != nil {
		return err
	}
	s.history = append(s.history, engine.Qualify(name))
	return nil
}

func (s *replSession) dotCommand(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(s.out)

	case ".use":
		if len(parts) != 2 {
			s.errorf("usage: .use LIB.TABLE")
			break
		}
		if err := s.use(ctx, parts[1]); err != nil {
			s.errorf("%v", err)
			break
		}
		s.list(ctx, s.obs)

	case ".print":
		obs := s.obs
		if len(parts) > 1 {
			n, err := strconv.Atoi(parts[1])
			if err != nil || n < 0 {
				s.errorf("usage: .print [rows]")
				break
			}
			obs = n
		}
		s.list(ctx, obs)

	case ".undo":
		if len(s.history) < 2 {
			s.errorf("nothing to undo")
			break
		}
		s.history = s.history[:len(s.history)-1]
		s.list(ctx, s.obs)

	case ".save":
		if len(parts) != 2 {
			s.errorf("usage: .save LIB.TABLE")
			break
		}
		if err := s.save(ctx, parts[1]); err != nil {
			s.errorf("%v", err)
			break
		}
		_, _ = fmt.Fprintf(s.out, "saved %s\n", engine.Qualify(parts[1]))

	case ".libs":
		_, _ = fmt.Fprintln(s.out, strings.Join(s.eng.Libraries(), "\n"))

	case ".tables":
		if len(parts) != 2 {
			s.errorf("usage: .tables LIB")
			break
		}
		tables, err := s.eng.ListDatasets(ctx, parts[1])
		if err != nil {
			s.errorf("%v", err)
			break
		}
		_, _ = fmt.Fprintln(s.out, strings.Join(tables, "\n"))

	default:
		s.errorf("unknown command: %s (type .help for commands)", parts[0])
	}
	return false
}

func (s *replSession) save(ctx context.Context, name string) error {
	if s.current() == "" {
		return fmt.Errorf("no current dataset")
	}
	ds, err := s.eng.Dataset(ctx, s.current())
	if err != nil {
		return err
	}
	return s.eng.WriteDataset(ctx, name, ds)
}

func (s *replSession) errorf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.errOut, "Error: "+format+"\n", args...)
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help             Show this help message
  .use LIB.TABLE    Make a dataset current
  .print [rows]     List the current dataset
  .undo             Return to the previous dataset
  .save LIB.TABLE   Store the current dataset
  .libs             List libraries
  .tables LIB       List the datasets of a library
  .quit / .exit     Exit the REPL

Tips:
  - Each block runs once per row of the current dataset
  - row.x reads and assigns variables; delete(), output(), retain() work as in programs
  - A line ending in ":" opens a block; finish it with a blank line
`
	_, _ = fmt.Fprintln(w, help)
}

// newREPLCompleter completes dot-commands and library names.
func newREPLCompleter(eng *engine.Engine) *readline.PrefixCompleter {
	var libs []readline.PrefixCompleterInterface
	for _, l := range eng.Libraries() {
		libs = append(libs, readline.PcItem(l))
	}
	items := []readline.PrefixCompleterInterface{
		readline.PcItem(".help"),
		readline.PcItem(".use", libs...),
		readline.PcItem(".print"),
		readline.PcItem(".undo"),
		readline.PcItem(".save", libs...),
		readline.PcItem(".libs"),
		readline.PcItem(".tables", libs...),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
		readline.PcItem("row."),
	}
	for _, name := range starctx.BuiltinNames() {
		items = append(items, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(items...)
}
