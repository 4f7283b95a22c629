package state

import (
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapstep/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_InitSchema(t *testing.T) {
	store := setupTestStore(t)

	for _, table := range []string{"runs", "step_runs"} {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		require.NoError(t, err, "table %s does not exist", table)
		_ = rows.Close()
	}

	version, err := store.GetMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	// migrating again is a no-op
	assert.NoError(t, store.InitSchema())
}

func TestSQLiteStore_FileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(path))
	require.NoError(t, store.InitSchema())
	run, err := store.CreateRun("dev", "etl.yaml")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened := NewSQLiteStore(nil)
	require.NoError(t, reopened.Open(path))
	defer func() { _ = reopened.Close() }()
	require.NoError(t, reopened.InitSchema())

	got, err := reopened.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, "etl.yaml", got.Program)
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)

	tests := []struct {
		name string
		op   func() error
	}{
		{"init", store.InitSchema},
		{"create run", func() error { _, err := store.CreateRun("dev", ""); return err }},
		{"get run", func() error { _, err := store.GetRun("x"); return err }},
		{"list runs", func() error { _, err := store.ListRuns(5); return err }},
		{"record step", func() error { return store.RecordStepRun(&core.StepRun{}) }},
		{"step runs", func() error { _, err := store.GetStepRunsForRun("x"); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "database not opened")
		})
	}
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	tests := []struct {
		name    string
		status  core.RunStatus
		errMsg  string
		wantErr string
	}{
		{"completed", core.RunStatusCompleted, "", ""},
		{"failed", core.RunStatusFailed, "step sorted failed", "step sorted failed"},
		{"cancelled", core.RunStatusCancelled, "interrupted", "interrupted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestStore(t)

			run, err := store.CreateRun("dev", "prog.yaml")
			require.NoError(t, err)
			assert.NotEmpty(t, run.ID)
			assert.Equal(t, core.RunStatusRunning, run.Status)

			require.NoError(t, store.CompleteRun(run.ID, tt.status, tt.errMsg))

			got, err := store.GetRun(run.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.wantErr, got.Error)
			assert.Equal(t, "dev", got.Environment)
			require.NotNil(t, got.CompletedAt)
			assert.False(t, got.CompletedAt.Before(got.StartedAt))
		})
	}
}

func TestSQLiteStore_RunNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetRun("missing")
	assert.ErrorContains(t, err, "run not found")
	assert.ErrorContains(t, store.CompleteRun("missing", core.RunStatusCompleted, ""), "run not found")

	latest, err := store.GetLatestRun("dev")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestSQLiteStore_ListAndLatest(t *testing.T) {
	store := setupTestStore(t)

	var ids []string
	for _, env := range []string{"dev", "prod", "dev"} {
		run, err := store.CreateRun(env, "p.yaml")
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	runs, err := store.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[1], runs[1].ID)

	latest, err := store.GetLatestRun("dev")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, ids[2], latest.ID)
}

func TestSQLiteStore_StepRuns(t *testing.T) {
	store := setupTestStore(t)
	run, err := store.CreateRun("dev", "p.yaml")
	require.NoError(t, err)

	first := &core.StepRun{RunID: run.ID, StepName: "clean", StepKind: "data"}
	require.NoError(t, store.RecordStepRun(first))
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, core.StepRunStatusPending, first.Status)

	second := &core.StepRun{RunID: run.ID, StepName: "summary", StepKind: "means", Status: core.StepRunStatusRunning}
	require.NoError(t, store.RecordStepRun(second))

	require.NoError(t, store.CompleteStepRun(first.ID, core.StepRunStatusSuccess,
		core.StepResult{RowsIn: 10, RowsOut: 8, ExecutionMS: 3}))
	require.NoError(t, store.CompleteStepRun(second.ID, core.StepRunStatusFailed,
		core.StepResult{RowsIn: 8, Error: "unknown variable", ErrorRow: 4}))

	steps, err := store.GetStepRunsForRun(run.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)

	assert.Equal(t, "clean", steps[0].StepName)
	assert.Equal(t, core.StepRunStatusSuccess, steps[0].Status)
	assert.Equal(t, int64(8), steps[0].RowsOut)
	assert.Empty(t, steps[0].Error)
	require.NotNil(t, steps[0].CompletedAt)

	assert.Equal(t, "summary", steps[1].StepName)
	assert.Equal(t, core.StepRunStatusFailed, steps[1].Status)
	assert.Equal(t, "unknown variable", steps[1].Error)
	assert.Equal(t, 4, steps[1].ErrorRow)

	assert.ErrorContains(t, store.CompleteStepRun("nope", core.StepRunStatusSuccess, core.StepResult{}), "step run not found")
}

func TestSQLiteStore_StepRunRequiresRun(t *testing.T) {
	store := setupTestStore(t)
	err := store.RecordStepRun(&core.StepRun{RunID: "no-such-run", StepName: "x", StepKind: "data"})
	assert.Error(t, err, "foreign key on run_id is enforced")
}
