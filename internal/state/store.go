// Package state records LeapStep run history in SQLite: one row per
// program run and one per executed step.
package state

import (
	"github.com/leapstack-labs/leapstep/pkg/core"
)

type (
	// Store is an alias for core.Store.
	Store = core.Store

	// RunStatus is an alias for core.RunStatus.
	RunStatus = core.RunStatus

	// Run is an alias for core.Run.
	Run = core.Run

	// StepRunStatus is an alias for core.StepRunStatus.
	StepRunStatus = core.StepRunStatus

	// StepRun is an alias for core.StepRun.
	StepRun = core.StepRun
)
