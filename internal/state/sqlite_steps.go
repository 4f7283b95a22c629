package state

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leapstep/pkg/core"
)

// RecordStepRun inserts a step run. An empty ID is generated and a zero
// StartedAt defaults to now.
func (s *SQLiteStore) RecordStepRun(sr *core.StepRun) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	if sr.ID == "" {
		sr.ID = generateID()
	}
	if sr.StartedAt.IsZero() {
		sr.StartedAt = time.Now().UTC()
	}
	if sr.Status == "" {
		sr.Status = core.StepRunStatusPending
	}

	s.logger.Debug("recording step run", slog.String("run_id", sr.RunID), slog.String("step", sr.StepName))

	var errorPtr *string
	if sr.Error != "" {
		errorPtr = &sr.Error
	}
	_, err := s.db.ExecContext(ctx(), `
		INSERT INTO step_runs (id, run_id, step_name, step_kind, status, rows_in, rows_out,
			started_at, completed_at, error, error_row, execution_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sr.ID, sr.RunID, sr.StepName, sr.StepKind, string(sr.Status), sr.RowsIn, sr.RowsOut,
		sr.StartedAt, sr.CompletedAt, errorPtr, sr.ErrorRow, sr.ExecutionMS,
	)
	if err != nil {
		return fmt.Errorf("failed to record step run: %w", err)
	}
	return nil
}

// CompleteStepRun records the outcome of a step.
func (s *SQLiteStore) CompleteStepRun(id string, status core.StepRunStatus, result core.StepResult) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	var errorPtr *string
	if result.Error != "" {
		errorPtr = &result.Error
	}
	res, err := s.db.ExecContext(ctx(), `
		UPDATE step_runs
		SET status = ?, rows_in = ?, rows_out = ?, completed_at = ?, error = ?, error_row = ?, execution_ms = ?
		WHERE id = ?`,
		string(status), result.RowsIn, result.RowsOut, time.Now().UTC(), errorPtr, result.ErrorRow, result.ExecutionMS, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete step run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("step run not found: %s", id)
	}
	return nil
}

// GetStepRunsForRun returns the steps of a run in execution order.
func (s *SQLiteStore) GetStepRunsForRun(runID string) ([]*core.StepRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx(), `
		SELECT id, run_id, step_name, step_kind, status, rows_in, rows_out,
			started_at, completed_at, error, error_row, execution_ms
		FROM step_runs WHERE run_id = ?
		ORDER BY started_at, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get step runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*core.StepRun
	for rows.Next() {
		sr := &core.StepRun{}
		var status string
		var completedAt sql.NullTime
		var errMsg sql.NullString
		if err := rows.Scan(&sr.ID, &sr.RunID, &sr.StepName, &sr.StepKind, &status, &sr.RowsIn, &sr.RowsOut,
			&sr.StartedAt, &completedAt, &errMsg, &sr.ErrorRow, &sr.ExecutionMS); err != nil {
			return nil, fmt.Errorf("failed to scan step run: %w", err)
		}
		sr.Status = core.StepRunStatus(status)
		if completedAt.Valid {
			t := completedAt.Time
			sr.CompletedAt = &t
		}
		sr.Error = errMsg.String
		out = append(out, sr)
	}
	return out, rows.Err()
}
