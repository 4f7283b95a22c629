// Package core defines the shared language of the LeapStep system.
//
// This package contains:
//   - Error kinds shared by every engine component (Error, Warning)
//   - Run history entities (Run, StepRun) and the Store interface
//   - Library configuration types (LibraryConfig)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
