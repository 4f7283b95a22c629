// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapstep/internal/cli/output"
)

// ProjectConfig is the leapstep.yaml written by SetupTestProject.
const ProjectConfig = `program: program.yaml
state_path: .leapstep/state.db
libraries:
  raw:
    type: csv
    path: data
`

// ProjectProgram is the program.yaml written by SetupTestProject.
const ProjectProgram = `name: payroll
formats:
  band:
    - {low: low, high: 150, label: low}
    - {other: true, label: high}
steps:
  - data: staff
    set: raw.people
    code: |
      row.bonus = row.sal / 10
  - proc: sort
    data: staff
    by: [dept, descending, sal]
  - proc: means
    data: staff
    class: [dept]
    var: [sal]
    stats: [n, sum]
    out: raw.summary
  - proc: print
    data: staff
    var: [dept, name, sal]
    format: {sal: band.}
`

// ProjectPeople is data/people.csv written by SetupTestProject.
const ProjectPeople = `dept,name,sal
HR,ann,100
IT,bob,300
HR,cy,200
`

// SetupTestProject creates a temporary project with a config file, a
// program and a csv library holding raw.people.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmpDir, "data"), 0o750); err != nil {
		t.Fatalf("failed to create data directory: %v", err)
	}

	files := map[string]string{
		"leapstep.yaml":   ProjectConfig,
		"program.yaml":    ProjectProgram,
		"data/people.csv": ProjectPeople,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
	}
	return tmpDir
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer captures a renderer's output in buffers.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// NewTestRendererMarkdown creates a non-TTY markdown renderer.
func NewTestRendererMarkdown() *TestRenderer {
	return NewTestRenderer(output.ModeMarkdown, false)
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown performs basic markdown validation: balanced code
// fences, non-empty headers and tables whose rows agree on column count.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	if fenceCount := strings.Count(md, "```"); fenceCount%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", fenceCount)
	}

	cols := -1
	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
		if !strings.HasPrefix(trimmed, "|") {
			cols = -1
			continue
		}
		n := strings.Count(strings.ReplaceAll(trimmed, `\|`, ""), "|")
		if cols >= 0 && n != cols {
			t.Errorf("table row at line %d has %d separators, want %d", i+1, n, cols)
		}
		cols = n
	}
}
