package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/leapstack-labs/leapstep/internal/cli/config"
	"github.com/leapstack-labs/leapstep/internal/cli/output"
	"github.com/leapstack-labs/leapstep/internal/engine"
	"github.com/leapstack-labs/leapstep/pkg/core"
	"github.com/spf13/cobra"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Select     []string
	Downstream bool
	Watch      bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the program",
		Long: `Execute the program's DATA and PROC steps in order.

Every DATA step is compiled before anything runs. Execution stops at the
first failing step and the remaining steps are recorded as skipped.
Use --select to run specific steps together with the steps that build
the work datasets they read.`,
		Example: `  # Run the whole program
  leapstep run

  # Run one step and the steps it depends on
  leapstep run --select print_staff

  # Run a step and everything downstream of it
  leapstep run --select data_staff --downstream

  # Re-run whenever the program or its scripts change
  leapstep run --watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Select, "select", "s", nil, "Comma-separated list of steps to run")
	cmd.Flags().BoolVar(&opts.Downstream, "downstream", false, "Include downstream dependents when using --select")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-run when the program directory changes")

	return cmd
}

func runRun(cmd *cobra.Command, opts *RunOptions) error {
	if opts.Watch {
		return watchRun(cmd, opts)
	}
	return runOnce(cmd, opts)
}

func runOnce(cmd *cobra.Command, opts *RunOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := cmdCtx.RequireProgram(); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	eng := cmdCtx.Engine
	var report *engine.Report
	if selected := splitList(opts.Select); len(selected) > 0 {
		report, err = eng.RunSelected(ctx, selected, opts.Downstream)
	} else {
		report, err = eng.Run(ctx)
	}
	if report == nil {
		return err
	}

	if renderErr := renderReport(cmdCtx.Renderer, eng, report); renderErr != nil {
		return errors.Join(err, renderErr)
	}
	return err
}

// renderReport prints the run summary after listings have been shown.
func renderReport(r *output.Renderer, eng *engine.Engine, report *engine.Report) error {
	stepRuns, err := eng.Store().GetStepRunsForRun(report.Run.ID)
	if err != nil {
		return fmt.Errorf("failed to load step runs: %w", err)
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(newRunOutput(report.Run, stepRuns))
	}
	if r.EffectiveMode() == output.ModeCSV {
		return nil
	}

	styles := r.Styles()
	r.Header(2, fmt.Sprintf("Run %s", report.Run.ID))
	for _, sr := range stepRuns {
		line := fmt.Sprintf("%-8s %-24s rows %d -> %d  %dms", sr.Status, sr.StepName, sr.RowsIn, sr.RowsOut, sr.ExecutionMS)
		switch sr.Status {
		case core.StepRunStatusSuccess:
			r.Println(styles.Success.Render(line))
		case core.StepRunStatusFailed:
			r.Println(styles.Error.Render(line))
			r.Println("  " + sr.Error)
		default:
			r.Println(styles.Muted.Render(line))
		}
	}
	r.Println()

	elapsed := time.Duration(0)
	if report.Run.CompletedAt != nil {
		elapsed = report.Run.CompletedAt.Sub(report.Run.StartedAt)
	}
	r.StatusLine("Status", string(report.Run.Status))
	r.StatusLine("Elapsed", elapsed.Round(time.Millisecond).String())
	return nil
}

// watchRun re-runs the program whenever it, a script or a format file is
// written.
func watchRun(cmd *cobra.Command, opts *RunOptions) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateProgram(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dirs, err := watchDirs(cfg.Program)
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := config.GetLogger(ctx)

	rerun := func() {
		if err := runOnce(cmd, opts); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s for changes...\n", strings.Join(dirs, ", "))
	}
	rerun()

	// Debounce editors that write a file several times in a row.
	var debounce *time.Timer
	trigger := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !watchedFile(event.Name) {
				continue
			}
			logger.Debug("file changed", "path", event.Name)
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(100*time.Millisecond, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})
		case <-trigger:
			rerun()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err)
		}
	}
}

// watchDirs lists the program directory and every directory holding a
// script or format file the program names.
func watchDirs(programPath string) ([]string, error) {
	prog, err := engine.LoadProgram(programPath)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{prog.Dir: true}
	dirs := []string{prog.Dir}
	add := func(path string) {
		if path == "" {
			return
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(prog.Dir, path)
		}
		if dir := filepath.Dir(path); !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	for _, f := range prog.FormatFiles {
		add(f)
	}
	for _, s := range prog.Steps {
		switch {
		case s.Data != nil:
			add(s.Data.Script)
		case s.Format != nil:
			add(s.Format.File)
		}
	}
	return dirs, nil
}

// watchedFile reports whether a change to path should trigger a run.
// Hidden and editor backup files are ignored.
func watchedFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	switch filepath.Ext(base) {
	case ".yaml", ".yml", ".star":
		return true
	}
	return false
}
