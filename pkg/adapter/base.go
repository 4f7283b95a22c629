package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapstep/pkg/core"
	"github.com/leapstack-labs/leapstep/pkg/dataset"
	"github.com/leapstack-labs/leapstep/pkg/value"
)

// Dialect captures the SQL differences BaseSQLAdapter needs.
type Dialect struct {
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// NumericType and CharacterType are the column types used by writes.
	NumericType   string
	CharacterType string
	// DefaultSchema qualifies bare table names. Empty means unqualified.
	DefaultSchema string
}

// QuestionPlaceholder is the "?" style used by DuckDB and SQLite.
func QuestionPlaceholder(int) string { return "?" }

// DollarPlaceholder is the "$n" style used by PostgreSQL.
func DollarPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

// BaseSQLAdapter provides the database/sql plumbing shared by adapters.
// Embed it in concrete adapters and set Dialect before use.
type BaseSQLAdapter struct {
	DB      *sql.DB
	Cfg     core.AdapterConfig
	Logger  *slog.Logger
	Dialect Dialect
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection")
		}
		return b.DB.Close()
	}
	return nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// Exec executes a statement that returns no rows.
func (b *BaseSQLAdapter) Exec(ctx context.Context, sqlStr string, args ...any) error {
	if b.DB == nil {
		return fmt.Errorf("database connection not established")
	}
	if _, err := b.DB.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// QuoteIdent double-quotes an identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ParseQualifiedName splits "schema.table", falling back to def.
func ParseQualifiedName(table, def string) (schema, name string) {
	if parts := strings.SplitN(table, ".", 2); len(parts) == 2 {
		return parts[0], parts[1]
	}
	return def, table
}

// QualifiedName quotes table, qualified by the dialect's default schema
// when it carries none of its own.
func (b *BaseSQLAdapter) QualifiedName(table string) string {
	schema, name := ParseQualifiedName(table, b.schema())
	if schema == "" {
		return QuoteIdent(name)
	}
	return QuoteIdent(schema) + "." + QuoteIdent(name)
}

func (b *BaseSQLAdapter) schema() string {
	if b.Cfg.Schema != "" {
		return b.Cfg.Schema
	}
	return b.Dialect.DefaultSchema
}

// ListTablesQuery runs query, bound to the configured schema when the
// query takes a parameter, and returns the first column of every row.
func (b *BaseSQLAdapter) ListTablesQuery(ctx context.Context, query string, withSchema bool) ([]string, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	var args []any
	if withSchema {
		args = append(args, b.schema())
	}
	rows, err := b.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}
	return names, nil
}

// ReadDataset loads SELECT * from table.
func (b *BaseSQLAdapter) ReadDataset(ctx context.Context, table string) (*dataset.Dataset, error) {
	//nolint:gosec // identifier is quoted
	return b.ReadQuery(ctx, table, "SELECT * FROM "+b.QualifiedName(table))
}

// ReadQuery materializes the result of query as a dataset named name.
// Column kinds come from the driver's type names, falling back to the
// scanned values when the driver reports none it recognizes.
func (b *BaseSQLAdapter) ReadQuery(ctx context.Context, name, query string, args ...any) (*dataset.Dataset, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	rows, err := b.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types: %w", err)
	}

	var records [][]any
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", name, err)
		}
		records = append(records, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", name, err)
	}

	vars := make([]dataset.Variable, len(cols))
	for i, c := range cols {
		kind, known := KindOfType(c.DatabaseTypeName())
		if !known {
			kind = sniffKind(records, i)
		}
		vars[i] = dataset.Variable{Name: c.Name(), Kind: kind}
	}
	cat, err := dataset.NewCatalog(vars...)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", name, err)
	}

	_, short := ParseQualifiedName(name, "")
	ds := dataset.New(short, cat)
	for n, rec := range records {
		vals := make([]value.Value, len(rec))
		for i, x := range rec {
			vals[i] = toValue(x)
		}
		r, err := dataset.RowFromValues(cat, vals)
		if err != nil {
			return nil, core.WithRow(fmt.Errorf("table %s: %w", name, err), n+1)
		}
		if err := ds.Append(r); err != nil {
			return nil, err
		}
	}

	b.logf("read dataset", "table", name, "rows", ds.Len(), "vars", cat.Len())
	return ds, nil
}

// WriteDataset replaces table with ds inside one transaction.
func (b *BaseSQLAdapter) WriteDataset(ctx context.Context, table string, ds *dataset.Dataset) error {
	if b.DB == nil {
		return fmt.Errorf("database connection not established")
	}

	qualified := b.QualifiedName(table)
	vars := ds.Catalog.Vars()
	if len(vars) == 0 {
		return fmt.Errorf("dataset %s has no variables", ds.Name)
	}
	defs := make([]string, len(vars))
	marks := make([]string, len(vars))
	for i, v := range vars {
		typ := b.Dialect.NumericType
		if v.Kind == value.Character {
			typ = b.Dialect.CharacterType
		}
		defs[i] = QuoteIdent(v.Name) + " " + typ
		marks[i] = b.placeholder(i + 1)
	}

	tx, err := b.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+qualified); err != nil {
		return fmt.Errorf("failed to drop %s: %w", table, err)
	}
	//nolint:gosec // identifiers are quoted
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", qualified, strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("failed to create %s: %w", table, err)
	}

	if ds.Len() > 0 {
		//nolint:gosec // identifiers are quoted
		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", qualified, strings.Join(marks, ", ")))
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for n, r := range ds.Rows {
			args := make([]any, len(vars))
			for i := range vars {
				args[i] = r.At(i).Any()
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return core.WithRow(fmt.Errorf("failed to insert into %s: %w", table, err), n+1)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", table, err)
	}
	b.logf("wrote dataset", "table", table, "rows", ds.Len(), "vars", len(vars))
	return nil
}

func (b *BaseSQLAdapter) placeholder(n int) string {
	if b.Dialect.Placeholder == nil {
		return QuestionPlaceholder(n)
	}
	return b.Dialect.Placeholder(n)
}

func (b *BaseSQLAdapter) logf(msg string, args ...any) {
	if b.Logger != nil {
		b.Logger.Debug(msg, args...)
	}
}
