package core

import "time"

// Store defines the interface for run history operations.
type Store interface {
	Open(path string) error
	Close() error
	InitSchema() error

	// Run operations
	CreateRun(env, program string) (*Run, error)
	GetRun(id string) (*Run, error)
	CompleteRun(id string, status RunStatus, errMsg string) error
	GetLatestRun(env string) (*Run, error)
	ListRuns(limit int) ([]*Run, error)

	// Step run operations
	RecordStepRun(stepRun *StepRun) error
	CompleteStepRun(id string, status StepRunStatus, result StepResult) error
	GetStepRunsForRun(runID string) ([]*StepRun, error)
}

// RunStatus represents the status of a program run.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run represents one execution of a program.
type Run struct {
	ID          string
	Environment string
	Program     string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// StepRunStatus represents the status of an individual step execution.
type StepRunStatus string

// Step run status constants.
const (
	StepRunStatusPending StepRunStatus = "pending"
	StepRunStatusRunning StepRunStatus = "running"
	StepRunStatusSuccess StepRunStatus = "success"
	StepRunStatusFailed  StepRunStatus = "failed"
	StepRunStatusSkipped StepRunStatus = "skipped"
)

// StepRun represents a single DATA or PROC step execution within a run.
type StepRun struct {
	ID          string
	RunID       string
	StepName    string
	StepKind    string
	Status      StepRunStatus
	RowsIn      int64
	RowsOut     int64
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
	// ErrorRow is the 1-based iteration at which a DATA step failed.
	ErrorRow    int
	ExecutionMS int64
}

// StepResult is what CompleteStepRun records about a finished step.
type StepResult struct {
	RowsIn      int64
	RowsOut     int64
	Error       string
	ErrorRow    int
	ExecutionMS int64
}
