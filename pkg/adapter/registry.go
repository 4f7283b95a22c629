package adapter

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/leapstack-labs/leapstep/pkg/core"
)

// Factory builds an unconnected adapter for one library type.
type Factory func(*slog.Logger) Adapter

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// Register makes a library type available to NewAdapter. Adapter packages
// call it from init; registering a type twice panics, as database/sql does
// for drivers.
func Register(libType string, f Factory) {
	if f == nil {
		panic("adapter: Register factory is nil for " + libType)
	}
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if _, dup := factories[libType]; dup {
		panic("adapter: Register called twice for " + libType)
	}
	factories[libType] = f
}

// Lookup returns the factory registered for libType.
func Lookup(libType string) (Factory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[libType]
	return f, ok
}

// Types lists the registered library types in sorted order.
func Types() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	types := make([]string, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Check returns an *UnknownAdapterError when no adapter serves libType.
func Check(libType string) error {
	if _, ok := Lookup(libType); !ok {
		return &UnknownAdapterError{Type: libType, Available: Types()}
	}
	return nil
}

// NewAdapter builds the adapter for cfg.Type. A nil logger discards.
func NewAdapter(cfg core.AdapterConfig, logger *slog.Logger) (Adapter, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("adapter type not specified")
	}
	f, ok := Lookup(cfg.Type)
	if !ok {
		return nil, &UnknownAdapterError{Type: cfg.Type, Available: Types()}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return f(logger), nil
}

// UnknownAdapterError names a library type no adapter package registered.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown library type %q (available: %v); check the library type in leapstep.yaml", e.Type, e.Available)
}
