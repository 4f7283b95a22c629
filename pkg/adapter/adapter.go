// Package adapter defines how LeapStep moves datasets between memory and a
// library: a database schema or a directory of files.
//
// Concrete adapters live in pkg/adapters/ subdirectories and register
// themselves by name from init().
package adapter

import (
	"context"

	"github.com/leapstack-labs/leapstep/pkg/core"
	"github.com/leapstack-labs/leapstep/pkg/dataset"
)

type (
	// Config is an alias for core.AdapterConfig.
	Config = core.AdapterConfig

	// Column is an alias for core.Column.
	Column = core.Column
)

// Adapter reads and writes whole datasets.
type Adapter interface {
	// Connect opens the library described by cfg.
	Connect(ctx context.Context, cfg Config) error

	// Close releases the connection.
	Close() error

	// ListTables returns the tables in the library, sorted.
	ListTables(ctx context.Context) ([]string, error)

	// ReadDataset loads a table into memory.
	ReadDataset(ctx context.Context, table string) (*dataset.Dataset, error)

	// WriteDataset replaces table with ds.
	WriteDataset(ctx context.Context, table string, ds *dataset.Dataset) error
}
