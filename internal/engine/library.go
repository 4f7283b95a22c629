package engine

// library.go - Dataset libraries: the in-memory work library plus lazily
// connected adapters for everything declared in the configuration.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/leapstep/pkg/adapter"
	"github.com/leapstack-labs/leapstep/pkg/core"
	"github.com/leapstack-labs/leapstep/pkg/dataset"
)

// WorkLibrary is the always-present in-memory library. Unqualified dataset
// names live here.
const WorkLibrary = "work"

// splitName splits LIB.TABLE. A bare name belongs to the work library.
func splitName(name string) (lib, table string) {
	name = strings.TrimSpace(name)
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return strings.ToLower(name[:i]), name[i+1:]
	}
	return WorkLibrary, name
}

// Qualify returns the canonical lib.table form of a dataset name.
func Qualify(name string) string {
	lib, table := splitName(name)
	return lib + "." + strings.ToLower(table)
}

func isWork(qualified string) bool {
	lib, _ := splitName(qualified)
	return lib == WorkLibrary
}

type libraries struct {
	mu      sync.Mutex
	configs map[string]core.LibraryConfig
	open    map[string]adapter.Adapter
	work    map[string]*dataset.Dataset
	logger  *slog.Logger
}

func newLibraries(configs map[string]core.LibraryConfig, logger *slog.Logger) (*libraries, error) {
	l := &libraries{
		configs: make(map[string]core.LibraryConfig, len(configs)),
		open:    make(map[string]adapter.Adapter),
		work:    make(map[string]*dataset.Dataset),
		logger:  logger,
	}
	for name, cfg := range configs {
		key := strings.ToLower(name)
		if key == WorkLibrary {
			return nil, fmt.Errorf("library name %q is reserved", WorkLibrary)
		}
		if err := adapter.Check(cfg.Type); err != nil {
			return nil, fmt.Errorf("library %s: %w", name, err)
		}
		l.configs[key] = cfg
	}
	return l, nil
}

// names lists the declared libraries and work, sorted.
func (l *libraries) names() []string {
	out := []string{WorkLibrary}
	for name := range l.configs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// adapterFor connects a library on first use.
func (l *libraries) adapterFor(ctx context.Context, lib string) (adapter.Adapter, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if a, ok := l.open[lib]; ok {
		return a, nil
	}
	cfg, ok := l.configs[lib]
	if !ok {
		return nil, fmt.Errorf("unknown library %q (declare it under libraries in leapstep.yaml)", lib)
	}

	l.logger.Debug("connecting library", "library", lib, "type", cfg.Type)
	acfg := cfg.ToAdapterConfig()
	a, err := adapter.NewAdapter(acfg, l.logger)
	if err != nil {
		return nil, fmt.Errorf("library %s: %w", lib, err)
	}
	if err := a.Connect(ctx, acfg); err != nil {
		return nil, fmt.Errorf("library %s: failed to connect: %w", lib, err)
	}
	l.open[lib] = a
	return a, nil
}

func (l *libraries) read(ctx context.Context, name string) (*dataset.Dataset, error) {
	lib, table := splitName(name)
	if lib == WorkLibrary {
		l.mu.Lock()
		ds, ok := l.work[strings.ToLower(table)]
		l.mu.Unlock()
		if !ok {
			return nil, fmt.Errorf("dataset %s not found", Qualify(name))
		}
		return ds, nil
	}

	a, err := l.adapterFor(ctx, lib)
	if err != nil {
		return nil, err
	}
	ds, err := a.ReadDataset(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", Qualify(name), err)
	}
	return ds, nil
}

func (l *libraries) write(ctx context.Context, name string, ds *dataset.Dataset) error {
	lib, table := splitName(name)
	ds.Name = table
	if lib == WorkLibrary {
		l.mu.Lock()
		l.work[strings.ToLower(table)] = ds
		l.mu.Unlock()
		return nil
	}

	a, err := l.adapterFor(ctx, lib)
	if err != nil {
		return err
	}
	if err := a.WriteDataset(ctx, table, ds); err != nil {
		return fmt.Errorf("write %s: %w", Qualify(name), err)
	}
	return nil
}

func (l *libraries) list(ctx context.Context, lib string) ([]string, error) {
	lib = strings.ToLower(lib)
	if lib == WorkLibrary {
		l.mu.Lock()
		defer l.mu.Unlock()
		out := make([]string, 0, len(l.work))
		for name := range l.work {
			out = append(out, name)
		}
		sort.Strings(out)
		return out, nil
	}
	a, err := l.adapterFor(ctx, lib)
	if err != nil {
		return nil, err
	}
	return a.ListTables(ctx)
}

func (l *libraries) close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	for name, a := range l.open {
		if err := a.Close(); err != nil {
			errs = append(errs, fmt.Errorf("library %s: %w", name, err))
		}
	}
	l.open = make(map[string]adapter.Adapter)
	return errors.Join(errs...)
}
