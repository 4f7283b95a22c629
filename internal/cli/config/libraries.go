package config

import (
	"maps"
	"os"
	"regexp"
)

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with the variable's value. Unset or empty
// variables leave the reference in place so the error names it.
func expandEnvVars(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		if val := os.Getenv(ref[2 : len(ref)-1]); val != "" {
			return val
		}
		return ref
	})
}

func expandLibraryEnvVars(l *LibraryConfig) {
	for _, field := range []*string{&l.Path, &l.Host, &l.Database, &l.User, &l.Password, &l.Schema} {
		*field = expandEnvVars(*field)
	}
	for key, v := range l.Options {
		l.Options[key] = expandEnvVars(v)
	}
}

// MergeLibraries overlays override on base by library name. Within a
// library, non-zero override fields win and options merge by key.
func MergeLibraries(base, override map[string]LibraryConfig) map[string]LibraryConfig {
	merged := maps.Clone(base)
	if merged == nil {
		merged = make(map[string]LibraryConfig, len(override))
	}
	for name, o := range override {
		if b, ok := merged[name]; ok {
			merged[name] = mergeLibrary(b, o)
		} else {
			merged[name] = o
		}
	}
	return merged
}

func mergeLibrary(b, o LibraryConfig) LibraryConfig {
	options := make(map[string]string, len(b.Options)+len(o.Options))
	maps.Copy(options, b.Options)
	maps.Copy(options, o.Options)

	b.Type = orElse(o.Type, b.Type)
	b.Path = orElse(o.Path, b.Path)
	b.Host = orElse(o.Host, b.Host)
	b.Port = orElse(o.Port, b.Port)
	b.Database = orElse(o.Database, b.Database)
	b.User = orElse(o.User, b.User)
	b.Password = orElse(o.Password, b.Password)
	b.Schema = orElse(o.Schema, b.Schema)
	b.Options = options
	return b
}

func orElse[T comparable](v, fallback T) T {
	var zero T
	if v == zero {
		return fallback
	}
	return v
}
