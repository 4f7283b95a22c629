package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leapstep/internal/cli/config"
	"github.com/leapstack-labs/leapstep/internal/cli/output"
	"github.com/leapstack-labs/leapstep/internal/engine"
	"github.com/leapstack-labs/leapstep/pkg/format"
	"github.com/leapstack-labs/leapstep/pkg/value"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with engine and renderer.
// The program file is loaded when it exists so its formats are available;
// commands that need it call RequireProgram.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cc, err := NewCommandContextWithoutEngine(cmd)
	if err != nil {
		return nil, nil, err
	}

	var prog *engine.Program
	if _, statErr := os.Stat(cc.Cfg.Program); statErr == nil {
		if prog, err = engine.LoadProgram(cc.Cfg.Program); err != nil {
			return nil, nil, err
		}
	}

	eng, err := createEngine(cc.Cfg, prog, cc.Renderer, cc.Logger)
	if err != nil {
		return nil, nil, err
	}
	cc.Engine = eng

	cleanup := func() {
		if err := eng.Close(); err != nil {
			cc.Logger.Warn("failed to close engine", "error", err)
		}
	}
	return cc, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that only read the configuration.
func NewCommandContextWithoutEngine(cmd *cobra.Command) (*CommandContext, error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, err
	}
	mode, err := output.ParseMode(cfg.OutputFormat)
	if err != nil {
		return nil, err
	}
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode),
	}, nil
}

// RequireProgram fails when no program file was loaded.
func (cc *CommandContext) RequireProgram() error {
	if cc.Engine != nil && cc.Engine.Program() != nil {
		return nil
	}
	return cc.Cfg.ValidateProgram()
}

// getConfig returns the configuration loaded by the root command, or loads
// one from the working directory when a command runs on its own.
func getConfig() (*config.Config, error) {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg, nil
	}
	return config.LoadConfig("", nil)
}

func createEngine(cfg *config.Config, prog *engine.Program, printer engine.Printer, logger *slog.Logger) (*engine.Engine, error) {
	// Ensure state directory exists
	if cfg.StatePath != "" && cfg.StatePath != ":memory:" {
		stateDir := filepath.Dir(cfg.StatePath)
		if stateDir != "." && stateDir != "" {
			if err := os.MkdirAll(stateDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}

	overlap, err := format.ParseOverlapPolicy(cfg.Formats.Overlap)
	if err != nil {
		return nil, err
	}

	return engine.New(engine.Config{
		Program:     prog,
		Libraries:   cfg.Libraries,
		StatePath:   cfg.StatePath,
		Environment: cfg.Environment,
		Display: value.DisplayOptions{
			Decimals:  cfg.Display.Decimals,
			TrimZeros: cfg.Display.TrimZeros,
		},
		Overlap:       overlap,
		Concurrency:   cfg.Concurrency,
		MaxIterations: cfg.MaxIterations,
		Timeout:       cfg.Timeout,
		MaxSteps:      cfg.MaxSteps,
		Printer:       printer,
		Logger:        logger,
	})
}

// splitList splits comma-separated flag values and drops empty entries.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
