package duckdb

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapstep/pkg/adapter"
	"github.com/leapstack-labs/leapstep/pkg/dataset"
)

// CSVAdapter treats a directory as a library with one <table>.csv file per
// dataset. Files are read with read_csv_auto and written with COPY through
// an in-memory DuckDB connection.
type CSVAdapter struct {
	db  *Adapter
	dir string
}

// NewCSV creates a CSV directory adapter.
func NewCSV(logger *slog.Logger) *CSVAdapter {
	return &CSVAdapter{db: New(logger)}
}

// Connect opens the directory cfg.Path, creating it if needed.
func (a *CSVAdapter) Connect(ctx context.Context, cfg adapter.Config) error {
	if cfg.Path == "" {
		return fmt.Errorf("csv library requires a path")
	}
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("failed to create csv directory: %w", err)
	}
	a.dir = abs

	inner := cfg
	inner.Path = ":memory:"
	return a.db.Connect(ctx, inner)
}

// Close closes the in-memory connection.
func (a *CSVAdapter) Close() error { return a.db.Close() }

func (a *CSVAdapter) file(table string) string {
	return filepath.Join(a.dir, table+".csv")
}

func sqlString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// ListTables returns the base names of the .csv files in the directory.
func (a *CSVAdapter) ListTables(_ context.Context) ([]string, error) {
	if a.dir == "" {
		return nil, fmt.Errorf("database connection not established")
	}
	matches, err := filepath.Glob(filepath.Join(a.dir, "*.csv"))
	if err != nil {
		return nil, err
	}
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = strings.TrimSuffix(filepath.Base(m), ".csv")
	}
	sort.Strings(names)
	return names, nil
}

// ReadDataset loads <table>.csv with header detection and type inference.
func (a *CSVAdapter) ReadDataset(ctx context.Context, table string) (*dataset.Dataset, error) {
	path := a.file(table)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("table %s not found: %w", table, err)
	}
	query := fmt.Sprintf("SELECT * FROM read_csv_auto(%s, header=true)", sqlString(path))
	return a.db.ReadQuery(ctx, table, query)
}

// WriteDataset stages ds in memory and copies it to <table>.csv.
func (a *CSVAdapter) WriteDataset(ctx context.Context, table string, ds *dataset.Dataset) error {
	stage := "stage_" + table
	if err := a.db.WriteDataset(ctx, stage, ds); err != nil {
		return err
	}
	copyStmt := fmt.Sprintf("COPY %s TO %s (HEADER, DELIMITER ',')", a.db.QualifiedName(stage), sqlString(a.file(table)))
	if err := a.db.Exec(ctx, copyStmt); err != nil {
		return fmt.Errorf("failed to write %s: %w", a.file(table), err)
	}
	return a.db.Exec(ctx, "DROP TABLE "+a.db.QualifiedName(stage))
}

var _ adapter.Adapter = (*CSVAdapter)(nil)
