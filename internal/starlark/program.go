package starlark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/leapstack-labs/leapstep/pkg/core"
	"github.com/leapstack-labs/leapstep/pkg/datastep"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

const sessionKey = "leapstep.session"

// fileOptions admits the statement forms a DATA step body needs at top
// level: loops, conditionals and reassignment.
var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

// Options configure a compiled program.
type Options struct {
	// Filename labels positions in error messages.
	Filename string
	// Params is exposed to the script as the frozen params dict.
	Params map[string]any
	// MaxSteps bounds the Starlark computation steps of one iteration.
	// Zero means unbounded.
	MaxSteps uint64
	Logger   *slog.Logger
}

// Program is a compiled DATA step script. It implements datastep.Program
// and is safe for concurrent use by several steps.
type Program struct {
	filename string
	prog     *starlark.Program
	builtins starlark.StringDict
	maxSteps uint64
	pool     *ThreadPool
	logger   *slog.Logger
}

var _ datastep.Program = (*Program)(nil)

// predeclaredNames are bound per iteration in addition to the builtins.
var predeclaredNames = []string{"row", "_n_"}

// Compile parses and resolves src once.
func Compile(src string, opts Options) (*Program, error) {
	if opts.Filename == "" {
		opts.Filename = "<data>"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	builtins, err := newBuiltins(opts.Params)
	if err != nil {
		return nil, err
	}
	builtins[compareName] = compareBuiltin
	isPredeclared := func(name string) bool {
		if _, ok := builtins[name]; ok {
			return true
		}
		for _, n := range predeclaredNames {
			if n == name {
				return true
			}
		}
		return false
	}

	f, err := fileOptions.Parse(opts.Filename, src, 0)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", opts.Filename, err)
	}
	rewriteComparisons(f)
	prog, err := starlark.FileProgram(f, isPredeclared)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", opts.Filename, err)
	}
	logger.Debug("compiled data step script", "file", opts.Filename)

	return &Program{
		filename: opts.Filename,
		prog:     prog,
		builtins: builtins,
		maxSteps: opts.MaxSteps,
		pool:     NewThreadPool(0),
		logger:   logger,
	}, nil
}

// CompileFile reads and compiles a script file.
func CompileFile(path string, opts Options) (*Program, error) {
	src, err := os.ReadFile(path) //nolint:gosec // script paths come from the program file
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	if opts.Filename == "" {
		opts.Filename = filepath.Base(path)
	}
	return Compile(string(src), opts)
}

// Filename returns the label used in error messages.
func (p *Program) Filename() string { return p.filename }

// Execute runs the script once against the session's working row. Every
// iteration starts from fresh script globals; only retained variables
// carry over.
func (p *Program) Execute(ctx context.Context, s *datastep.Session) error {
	thread := p.pool.Get(fmt.Sprintf("%s:%d", p.filename, s.N()))
	thread.Print = func(_ *starlark.Thread, msg string) { s.Put("%s", msg) }
	thread.SetLocal(sessionKey, s)
	thread.Steps = 0
	if p.maxSteps > 0 {
		thread.SetMaxExecutionSteps(p.maxSteps)
	}

	// Cancellation interrupts the script mid-statement so a runaway loop
	// cannot outlive the step timeout. The interrupted row is not emitted.
	stop := context.AfterFunc(ctx, func() { thread.Cancel(context.Cause(ctx).Error()) })

	predeclared := make(starlark.StringDict, len(p.builtins)+len(predeclaredNames))
	for k, v := range p.builtins {
		predeclared[k] = v
	}
	predeclared["row"] = rowValue{s: s}
	predeclared["_n_"] = starlark.MakeInt(s.N())

	_, err := p.prog.Init(thread, predeclared)
	// a thread that saw Cancel cannot be reused
	if stop() && err == nil {
		p.pool.Put(thread)
	}
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return &core.Error{Kind: core.KindCancelled, Op: "starlark.exec", Name: p.filename, Msg: "cancelled", Err: ctxErr}
	}
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		p.logger.Debug("data step script failed", "file", p.filename, "row", s.N(), "backtrace", evalErr.Backtrace())
	}
	return err
}

func sessionOf(thread *starlark.Thread) (*datastep.Session, error) {
	s, ok := thread.Local(sessionKey).(*datastep.Session)
	if !ok || s == nil {
		return nil, fmt.Errorf("no data step is running")
	}
	return s, nil
}

// BuiltinNames lists the names a script sees besides row and _n_.
func BuiltinNames() []string {
	b, _ := newBuiltins(nil)
	names := make([]string, 0, len(b))
	for k := range b {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
