package config

import (
	"fmt"
	"os"

	intconfig "github.com/leapstack-labs/leapstep/internal/config"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.OutputFormat {
	case "", "auto", "text", "markdown", "json", "csv":
	default:
		return fmt.Errorf("output must be one of auto, text, markdown, json, csv (got %q)", c.OutputFormat)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative")
	}
	if c.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must not be negative")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if err := intconfig.ValidateFormats(c.Formats); err != nil {
		return err
	}
	return intconfig.ValidateLibraries(c.Libraries)
}

// ValidateProgram checks that the program file exists. Only commands that
// run the program call it, so help and ad-hoc commands work without one.
func (c *Config) ValidateProgram() error {
	if _, err := os.Stat(c.Program); os.IsNotExist(err) {
		return fmt.Errorf("program file does not exist: %s\nHint: Create it or use --program to specify a different path", c.Program)
	}
	return nil
}
