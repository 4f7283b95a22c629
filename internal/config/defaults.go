package config

import (
	"strings"

	"github.com/leapstack-labs/leapstep/pkg/core"
)

// Default configuration values.
const (
	DefaultProgramFile = "program.yaml"
	DefaultStateFile   = ".leapstep/state.db"
	DefaultEnv         = "dev"
	DefaultOutput      = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultDecimals    = 2
	DefaultOverlap     = "ignore"
	DefaultConcurrency = 4
)

// ApplyLibraryDefaults applies default values to a LibraryConfig based on
// its type.
func ApplyLibraryDefaults(l *core.LibraryConfig) {
	if l == nil {
		return
	}
	l.Type = strings.ToLower(strings.TrimSpace(l.Type))
	if l.Schema == "" {
		l.Schema = DefaultSchemaForType(l.Type)
	}
	if l.Type == "postgres" && l.Port == 0 {
		l.Port = 5432
	}
}

// DefaultSchemaForType returns the default schema for a library type.
func DefaultSchemaForType(libType string) string {
	switch libType {
	case "postgres":
		return "public"
	case "duckdb":
		return "main"
	default:
		return ""
	}
}
