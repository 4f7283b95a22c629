// Package engine runs LeapStep programs.
// It resolves dataset libraries, orders steps by the datasets they share,
// executes DATA steps and procedures, and records every run in the state
// store.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/leapstack-labs/leapstep/internal/dag"
	"github.com/leapstack-labs/leapstep/internal/state"
	"github.com/leapstack-labs/leapstep/pkg/core"
	"github.com/leapstack-labs/leapstep/pkg/dataset"
	"github.com/leapstack-labs/leapstep/pkg/format"
	"github.com/leapstack-labs/leapstep/pkg/group"
	"github.com/leapstack-labs/leapstep/pkg/value"

	// Dataset library types available to programs.
	_ "github.com/leapstack-labs/leapstep/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/leapstep/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/leapstep/pkg/adapters/sqlite"
)

// Listing is a dataset a step asks to be shown.
type Listing struct {
	Title   string
	Dataset *dataset.Dataset
	// Formats maps variable names to the format used to render them.
	Formats map[string]string
	Catalog *format.Catalog
}

// Printer receives listings as steps produce them.
type Printer interface {
	PrintDataset(l Listing) error
	PrintFreq(title string, t *group.FreqTable) error
}

// LogPrinter is implemented by printers that also show the PUT lines of a
// DATA step, as soon as the step finishes.
type LogPrinter interface {
	PrintLog(step string, lines []string)
}

// Config holds engine configuration.
type Config struct {
	// Program is the parsed program. It may be nil for ad-hoc step use.
	Program *Program
	// Libraries are the declared dataset libraries, keyed by name.
	Libraries map[string]core.LibraryConfig
	// StatePath is the run history database; empty keeps it in memory.
	StatePath string
	// Store overrides the SQLite store, mainly for tests.
	Store       core.Store
	Environment string

	Display       value.DisplayOptions
	Overlap       format.OverlapPolicy
	Concurrency   int
	MaxIterations int
	Timeout       time.Duration
	// MaxSteps bounds Starlark computation per DATA step iteration.
	MaxSteps uint64

	Printer Printer
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Engine executes programs against a set of libraries.
type Engine struct {
	cfg       Config
	program   *Program
	libs      *libraries
	formats   *format.Catalog
	store     core.Store
	ownsStore bool
	graph     *dag.Graph
	logger    *slog.Logger
}

// New creates an engine. Libraries connect lazily on first use.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Environment == "" {
		cfg.Environment = "dev"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	logger.Debug("initializing engine", "environment", cfg.Environment, "libraries", len(cfg.Libraries))

	libs, err := newLibraries(cfg.Libraries, logger)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:     cfg,
		program: cfg.Program,
		libs:    libs,
		formats: format.NewCatalog(format.Options{
			Overlap: cfg.Overlap,
			Display: cfg.Display,
			Logger:  logger,
		}),
		store:  cfg.Store,
		graph:  dag.NewGraph(),
		logger: logger,
	}

	if e.store == nil {
		path := cfg.StatePath
		if path == "" {
			path = ":memory:"
		}
		store := state.NewSQLiteStore(logger)
		if err := store.Open(path); err != nil {
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		if err := store.InitSchema(); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to initialize state schema: %w", err)
		}
		e.store = store
		e.ownsStore = true
	}

	if e.program != nil {
		if err := e.loadProgramFormats(); err != nil {
			_ = e.Close()
			return nil, err
		}
		graph, err := buildGraph(e.program)
		if err != nil {
			_ = e.Close()
			return nil, err
		}
		e.graph = graph
	}
	return e, nil
}

// Close disconnects libraries and closes the store the engine opened.
func (e *Engine) Close() error {
	errs := []error{e.libs.close()}
	if e.ownsStore {
		errs = append(errs, e.store.Close())
	}
	return errors.Join(errs...)
}

func (e *Engine) loadProgramFormats() error {
	for _, file := range e.program.FormatFiles {
		if err := e.loadFormatFile(e.program.resolvePath(file)); err != nil {
			return err
		}
	}
	if len(e.program.Formats) > 0 {
		warnings, err := format.LoadYAML(bytes.NewReader(e.program.Formats), e.formats)
		e.logWarnings("program formats", warnings)
		if err != nil {
			return fmt.Errorf("program formats: %w", err)
		}
	}
	return nil
}

func (e *Engine) loadFormatFile(path string) error {
	f, err := os.Open(path) //nolint:gosec // format files are named by the program
	if err != nil {
		return fmt.Errorf("failed to open formats: %w", err)
	}
	defer func() { _ = f.Close() }()

	warnings, err := format.LoadYAML(f, e.formats)
	e.logWarnings(path, warnings)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func (e *Engine) logWarnings(source string, warnings []error) {
	for _, w := range warnings {
		e.logger.Warn("format warning", "source", source, "warning", w.Error())
	}
}

// Program returns the loaded program, or nil.
func (e *Engine) Program() *Program { return e.program }

// Graph returns the step dependency graph.
func (e *Engine) Graph() *dag.Graph { return e.graph }

// Formats returns the format catalog shared by all steps.
func (e *Engine) Formats() *format.Catalog { return e.formats }

// Store returns the run history store.
func (e *Engine) Store() core.Store { return e.store }

// Libraries lists the library names, including work.
func (e *Engine) Libraries() []string { return e.libs.names() }

// Dataset reads LIB.TABLE, or a work dataset for a bare name.
func (e *Engine) Dataset(ctx context.Context, name string) (*dataset.Dataset, error) {
	return e.libs.read(ctx, name)
}

// WriteDataset stores ds as LIB.TABLE, replacing any existing table.
func (e *Engine) WriteDataset(ctx context.Context, name string, ds *dataset.Dataset) error {
	return e.libs.write(ctx, name, ds)
}

// ListDatasets lists the tables of one library.
func (e *Engine) ListDatasets(ctx context.Context, lib string) ([]string, error) {
	return e.libs.list(ctx, lib)
}
