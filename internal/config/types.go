// Package config provides shared configuration defaults and validation for
// LeapStep. It is decoupled from CLI concerns.
package config

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/leapstep/pkg/adapter"
	"github.com/leapstack-labs/leapstep/pkg/core"
	"github.com/leapstack-labs/leapstep/pkg/format"
)

// ValidateLibrary checks one library declaration. The adapter for its type
// must be registered.
func ValidateLibrary(name string, l *core.LibraryConfig) error {
	if l.Type == "" {
		return fmt.Errorf("library %s: type is required", name)
	}
	if err := adapter.Check(l.Type); err != nil {
		return fmt.Errorf("library %s: %w", name, err)
	}
	switch l.Type {
	case "csv":
		if l.Path == "" {
			return fmt.Errorf("library %s: csv libraries need a path", name)
		}
	case "postgres":
		if l.Host == "" || l.Database == "" {
			return fmt.Errorf("library %s: postgres libraries need host and database", name)
		}
	}
	return nil
}

// ValidateLibraries checks every declaration, in name order.
func ValidateLibraries(libs map[string]core.LibraryConfig) error {
	names := make([]string, 0, len(libs))
	for name := range libs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		l := libs[name]
		if err := ValidateLibrary(name, &l); err != nil {
			return err
		}
	}
	return nil
}

// ValidateFormats checks the formats section.
func ValidateFormats(f core.FormatsConfig) error {
	if _, err := format.ParseOverlapPolicy(f.Overlap); err != nil {
		return fmt.Errorf("formats.overlap: %w", err)
	}
	return nil
}
