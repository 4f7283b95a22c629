package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	intconfig "github.com/leapstack-labs/leapstep/internal/config"
	"github.com/spf13/pflag"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// envPrefix prefixes every environment variable the loader reads.
const envPrefix = "LEAPSTEP_"

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config // Stores the loaded config for access by commands
)

// flagKeys maps flag names to config keys where the two differ.
var flagKeys = map[string]string{
	"state":    "state_path",
	"env":      "environment",
	"overlap":  "formats.overlap",
	"decimals": "display.decimals",
}

// fileBackedTypes are library types whose path names a local file or
// directory.
var fileBackedTypes = map[string]bool{"csv": true, "duckdb": true, "sqlite": true}

// inferProjectRoot determines the project root.
// Priority:
//  1. Directory of an explicit --config file
//  2. Directory of an explicit --program file that holds a config file
//  3. Search upward from CWD for leapstep.yaml
//  4. Current working directory
func inferProjectRoot(cfgFile string, flags *pflag.FlagSet) string {
	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			return filepath.Dir(abs)
		}
	}

	if flags != nil && flags.Changed("program") {
		if p, _ := flags.GetString("program"); p != "" {
			if abs, err := filepath.Abs(p); err == nil && intconfig.FindConfigFile(filepath.Dir(abs)) != "" {
				return filepath.Dir(abs)
			}
		}
	}

	cwd, err := os.Getwd()
	if err != nil || cwd == "" {
		return "."
	}
	if root := intconfig.FindProjectRoot(cwd); root != "" {
		return root
	}
	return cwd
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty, in-memory or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig layers defaults, the config file, LEAPSTEP_ environment
// variables and explicitly set flags, later layers winning, then resolves
// environment overrides and paths.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")

	projectRoot := inferProjectRoot(cfgFile, flags)

	// Paths given as flags are relative to CWD, not the project root.
	flagPaths := make(map[string]string)
	if flags != nil {
		for _, name := range []string{"program", "state"} {
			if flags.Lookup(name) == nil || !flags.Changed(name) {
				continue
			}
			if v, _ := flags.GetString(name); v != "" {
				flagPaths[name], _ = filepath.Abs(v)
			}
		}
	}

	for _, load := range []func() error{
		loadDefaults,
		func() error { return loadFile(cfgFile, projectRoot) },
		loadEnv,
		func() error { return loadFlags(flags) },
	} {
		if err := load(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ProjectRoot = projectRoot

	// Environment overrides apply after decoding so they merge per library.
	if envCfg, ok := cfg.Environments[cfg.Environment]; ok {
		if envCfg.StatePath != "" && flagPaths["state"] == "" {
			cfg.StatePath = envCfg.StatePath
		}
		cfg.Libraries = MergeLibraries(cfg.Libraries, envCfg.Libraries)
	}

	cfg.Program = pathOrFlag(flagPaths["program"], cfg.Program, projectRoot)
	cfg.StatePath = pathOrFlag(flagPaths["state"], cfg.StatePath, projectRoot)
	for name, lib := range cfg.Libraries {
		intconfig.ApplyLibraryDefaults(&lib)
		expandLibraryEnvVars(&lib)
		if fileBackedTypes[lib.Type] {
			lib.Path = resolvePathRelativeTo(lib.Path, projectRoot)
		}
		cfg.Libraries[name] = lib
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	currentConfig = &cfg

	return &cfg, nil
}

func loadDefaults() error {
	err := k.Load(confmap.Provider(map[string]any{
		"program":            intconfig.DefaultProgramFile,
		"state_path":         intconfig.DefaultStateFile,
		"environment":        intconfig.DefaultEnv,
		"verbose":            false,
		"output":             intconfig.DefaultOutput,
		"display.decimals":   intconfig.DefaultDecimals,
		"display.trim_zeros": true,
		"formats.overlap":    intconfig.DefaultOverlap,
		"concurrency":        intconfig.DefaultConcurrency,
		"max_iterations":     0,
		"timeout":            "0s",
		"max_steps":          0,
	}, "."), nil)
	if err != nil {
		return fmt.Errorf("failed to load defaults: %w", err)
	}
	return nil
}

func loadFile(cfgFile, projectRoot string) error {
	if cfgFile == "" {
		cfgFile = intconfig.FindConfigFile(projectRoot)
	}
	configFileUsed = cfgFile
	if cfgFile == "" {
		return nil
	}
	if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
		return fmt.Errorf("error reading config file %s: %w", cfgFile, err)
	}
	return nil
}

// loadEnv maps LEAPSTEP_STATE_PATH to state_path and
// LEAPSTEP_DISPLAY__DECIMALS to display.decimals.
func loadEnv() error {
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return fmt.Errorf("failed to load env vars: %w", err)
	}
	return nil
}

// loadFlags loads only flags the user set. Kebab-case names become
// snake_case keys unless flagKeys maps them.
func loadFlags(flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
		if !f.Changed || f.Name == "config" {
			return "", nil
		}
		key := strings.ReplaceAll(f.Name, "-", "_")
		if mapped, ok := flagKeys[key]; ok {
			key = mapped
		}
		return key, posflag.FlagVal(flags, f)
	}), nil)
	if err != nil {
		return fmt.Errorf("failed to load flags: %w", err)
	}
	return nil
}

func pathOrFlag(flagPath, path, root string) string {
	if flagPath != "" {
		return flagPath
	}
	return resolvePathRelativeTo(path, root)
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
// This is available after LoadConfig is called.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() any {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
			return l
		}
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}
