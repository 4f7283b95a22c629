// Package config provides configuration management for the LeapStep CLI.
//
// The shared library and display types are defined in pkg/core and
// re-exported here via type aliases for convenience.
package config

import (
	"time"

	sharedcfg "github.com/leapstack-labs/leapstep/internal/config"
	"github.com/leapstack-labs/leapstep/pkg/core"
)

// LibraryConfig is an alias for the shared library declaration.
type LibraryConfig = core.LibraryConfig

// DisplayConfig is an alias for the shared numeric display settings.
type DisplayConfig = core.DisplayConfig

// FormatsConfig is an alias for the shared format settings.
type FormatsConfig = core.FormatsConfig

// Config holds all CLI configuration options.
type Config struct {
	// ProjectRoot anchors relative paths. It is not read from the file.
	ProjectRoot   string                   `koanf:"-"`
	Program       string                   `koanf:"program"`
	StatePath     string                   `koanf:"state_path"`
	Environment   string                   `koanf:"environment"`
	Verbose       bool                     `koanf:"verbose"`
	OutputFormat  string                   `koanf:"output"`
	Display       DisplayConfig            `koanf:"display"`
	Formats       FormatsConfig            `koanf:"formats"`
	Concurrency   int                      `koanf:"concurrency"`
	MaxIterations int                      `koanf:"max_iterations"`
	Timeout       time.Duration            `koanf:"timeout"`
	MaxSteps      uint64                   `koanf:"max_steps"`
	Libraries     map[string]LibraryConfig `koanf:"libraries"`
	Environments  map[string]EnvConfig     `koanf:"environments"`
}

// EnvConfig holds environment-specific configuration overrides.
type EnvConfig struct {
	StatePath string `koanf:"state_path"`
	// Libraries are merged over the top-level declarations by name.
	Libraries map[string]LibraryConfig `koanf:"libraries"`
}

// Default configuration values - uses shared defaults from internal/config
const (
	DefaultProgramFile = sharedcfg.DefaultProgramFile
	DefaultStateFile   = sharedcfg.DefaultStateFile
	DefaultEnv         = sharedcfg.DefaultEnv
	DefaultOutput      = sharedcfg.DefaultOutput
)
