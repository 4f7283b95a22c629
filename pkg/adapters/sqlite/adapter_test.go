package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapstep/pkg/adapter"
	"github.com/leapstack-labs/leapstep/pkg/core"
	"github.com/leapstack-labs/leapstep/pkg/dataset"
	"github.com/leapstack-labs/leapstep/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapter_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"in-memory", func(*testing.T) string { return "" }},
		{"file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "lib.db") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			a := New(nil)
			require.NoError(t, a.Connect(ctx, core.AdapterConfig{Path: tt.path(t)}))
			defer func() { _ = a.Close() }()

			in, err := dataset.FromRecords("people",
				[]dataset.Variable{dataset.Char("dept", 2), dataset.Num("sal")},
				[][]any{{"HR", 50000}, {"IT", nil}, {nil, 1.5}},
			)
			require.NoError(t, err)
			require.NoError(t, a.WriteDataset(ctx, "people", in))

			tables, err := a.ListTables(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"people"}, tables)

			out, err := a.ReadDataset(ctx, "people")
			require.NoError(t, err)
			assert.Equal(t, []string{"dept"}, out.Catalog.NamesOfKind(value.Character))

			sal, err := out.Column("sal")
			require.NoError(t, err)
			assert.Equal(t, []value.Value{value.Num(50000), value.Missing(), value.Num(1.5)}, sal)

			dept, err := out.Column("dept")
			require.NoError(t, err)
			assert.True(t, dept[2].IsMissing())
		})
	}
}

func TestAdapter_IntegerColumns(t *testing.T) {
	ctx := context.Background()
	a := New(nil)
	require.NoError(t, a.Connect(ctx, core.AdapterConfig{}))
	defer func() { _ = a.Close() }()

	require.NoError(t, a.Exec(ctx, "CREATE TABLE t (id INTEGER, code TEXT)"))
	require.NoError(t, a.Exec(ctx, "INSERT INTO t VALUES (?, ?)", 7, "007"))

	ds, err := a.ReadDataset(ctx, "t")
	require.NoError(t, err)
	id, err := ds.Column("id")
	require.NoError(t, err)
	assert.Equal(t, value.Num(7), id[0])

	code, err := ds.Column("code")
	require.NoError(t, err)
	assert.Equal(t, value.Char("007"), code[0], "text columns stay character")
}

func TestRegistered(t *testing.T) {
	assert.NoError(t, adapter.Check("sqlite"))
}
