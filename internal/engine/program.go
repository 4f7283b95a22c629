package engine

// program.go - Program file parsing and validation

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"
)

// StepKind identifies what a step does.
type StepKind string

// Step kinds.
const (
	KindData   StepKind = "data"
	KindSort   StepKind = "sort"
	KindMeans  StepKind = "means"
	KindFreq   StepKind = "freq"
	KindPrint  StepKind = "print"
	KindFormat StepKind = "format"
)

// Program is a parsed program file: format declarations followed by an
// ordered list of steps.
type Program struct {
	Name string
	// Dir resolves relative script and format file paths.
	Dir string
	// FormatFiles are loaded, in order, before any step runs.
	FormatFiles []string
	// Formats holds the inline formats document, if any.
	Formats []byte
	Steps   []*Step
}

// Step is one program entry. Exactly one of the kind-specific fields is set.
type Step struct {
	Name string
	Kind StepKind

	Data   *DataStep
	Sort   *SortStep
	Means  *MeansStep
	Freq   *FreqStep
	Print  *PrintStep
	Format *FormatStep
}

// DataStep runs a Starlark script once per input row.
type DataStep struct {
	Out           string         `mapstructure:"data"`
	Set           string         `mapstructure:"set"`
	Script        string         `mapstructure:"script"`
	Code          string         `mapstructure:"code"`
	Keep          []string       `mapstructure:"keep"`
	Drop          []string       `mapstructure:"drop"`
	Params        map[string]any `mapstructure:"params"`
	MaxIterations int            `mapstructure:"max_iterations"`
}

// SortStep orders a dataset. Without Out the input is replaced.
type SortStep struct {
	Input    string   `mapstructure:"data"`
	Out      string   `mapstructure:"out"`
	By       []string `mapstructure:"by"`
	NoDupKey bool     `mapstructure:"nodupkey"`
}

// MeansStep computes per-group statistics. Without Out the result is
// printed.
type MeansStep struct {
	Input string   `mapstructure:"data"`
	Out   string   `mapstructure:"out"`
	Class []string `mapstructure:"class"`
	Var   []string `mapstructure:"var"`
	Stats []string `mapstructure:"stats"`
	Freq  bool     `mapstructure:"freq"`
	Title string   `mapstructure:"title"`
}

// FreqStep builds one-way frequency tables. They are always printed; with
// Out they are also stored, one dataset per table when there are several.
type FreqStep struct {
	Input   string   `mapstructure:"data"`
	Out     string   `mapstructure:"out"`
	Tables  []string `mapstructure:"tables"`
	Missing bool     `mapstructure:"missing"`
}

// PrintStep lists a dataset.
type PrintStep struct {
	Input  string            `mapstructure:"data"`
	Var    []string          `mapstructure:"var"`
	Format map[string]string `mapstructure:"format"`
	Title  string            `mapstructure:"title"`
	Obs    int               `mapstructure:"obs"`
}

// FormatStep declares formats mid-program.
type FormatStep struct {
	File    string         `mapstructure:"file"`
	Formats map[string]any `mapstructure:"formats"`
}

type rawProgram struct {
	Name        string           `yaml:"name"`
	FormatFiles []string         `yaml:"format_files"`
	Formats     yaml.Node        `yaml:"formats"`
	Steps       []map[string]any `yaml:"steps"`
}

// LoadProgram reads and parses a program file.
func LoadProgram(path string) (*Program, error) {
	f, err := os.Open(path) //nolint:gosec // program path comes from the user
	if err != nil {
		return nil, fmt.Errorf("failed to open program: %w", err)
	}
	defer func() { _ = f.Close() }()

	p, err := ParseProgram(f, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return p, nil
}

// ParseProgram parses a program document. dir anchors relative paths.
func ParseProgram(r io.Reader, dir string) (*Program, error) {
	var raw rawProgram
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if err == io.EOF { //nolint:errorlint // yaml returns io.EOF unwrapped
			return nil, fmt.Errorf("program is empty")
		}
		return nil, fmt.Errorf("failed to parse program: %w", err)
	}

	p := &Program{
		Name:        raw.Name,
		Dir:         dir,
		FormatFiles: raw.FormatFiles,
	}
	if raw.Formats.Kind != 0 {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		if err := enc.Encode(&raw.Formats); err != nil {
			return nil, fmt.Errorf("formats: %w", err)
		}
		_ = enc.Close()
		p.Formats = buf.Bytes()
	}

	seen := make(map[string]bool)
	for i, m := range raw.Steps {
		step, err := parseStep(m)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		if step.Name == "" {
			step.Name = defaultStepName(step)
		}
		if seen[step.Name] {
			if explicit, _ := m["name"].(string); explicit != "" {
				return nil, fmt.Errorf("step %d: duplicate step name %q", i+1, step.Name)
			}
			step.Name = fmt.Sprintf("%s_%d", step.Name, i+1)
		}
		seen[step.Name] = true
		p.Steps = append(p.Steps, step)
	}
	return p, nil
}

func parseStep(m map[string]any) (*Step, error) {
	opts := make(map[string]any, len(m))
	for k, v := range m {
		opts[strings.ToLower(k)] = v
	}
	step := &Step{}
	if name, ok := opts["name"]; ok {
		s, isStr := name.(string)
		if !isStr {
			return nil, fmt.Errorf("name must be a string")
		}
		step.Name = s
		delete(opts, "name")
	}

	proc, hasProc := opts["proc"]
	delete(opts, "proc")
	kind := KindData
	if hasProc {
		s, _ := proc.(string)
		kind = StepKind(strings.ToLower(strings.TrimSpace(s)))
	} else if _, ok := opts["data"]; !ok {
		return nil, fmt.Errorf("step needs either data or proc")
	}
	step.Kind = kind

	var target any
	switch kind {
	case KindData:
		step.Data = &DataStep{}
		target = step.Data
	case KindSort:
		step.Sort = &SortStep{}
		target = step.Sort
	case KindMeans:
		step.Means = &MeansStep{}
		target = step.Means
	case KindFreq:
		step.Freq = &FreqStep{}
		target = step.Freq
	case KindPrint:
		step.Print = &PrintStep{}
		target = step.Print
	case KindFormat:
		step.Format = &FormatStep{}
		target = step.Format
	default:
		return nil, fmt.Errorf("unknown proc %q", proc)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(opts); err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	return step, step.validate()
}

func (s *Step) validate() error {
	switch s.Kind {
	case KindData:
		d := s.Data
		if d.Out == "" {
			return fmt.Errorf("data: output dataset is required")
		}
		if (d.Script == "") == (d.Code == "") {
			return fmt.Errorf("data %s: exactly one of script or code is required", d.Out)
		}
	case KindSort:
		if s.Sort.Input == "" || len(s.Sort.By) == 0 {
			return fmt.Errorf("sort: data and by are required")
		}
	case KindMeans:
		if s.Means.Input == "" {
			return fmt.Errorf("means: data is required")
		}
	case KindFreq:
		if s.Freq.Input == "" || len(s.Freq.Tables) == 0 {
			return fmt.Errorf("freq: data and tables are required")
		}
	case KindPrint:
		if s.Print.Input == "" {
			return fmt.Errorf("print: data is required")
		}
	case KindFormat:
		if s.Format.File == "" && len(s.Format.Formats) == 0 {
			return fmt.Errorf("format: file or formats is required")
		}
	}
	return nil
}

func defaultStepName(s *Step) string {
	switch s.Kind {
	case KindData:
		return "data_" + tableOf(s.Data.Out)
	case KindSort:
		return "sort_" + tableOf(s.Sort.Input)
	case KindMeans:
		return "means_" + tableOf(s.Means.Input)
	case KindFreq:
		return "freq_" + tableOf(s.Freq.Input)
	case KindPrint:
		return "print_" + tableOf(s.Print.Input)
	}
	return string(s.Kind)
}

func tableOf(name string) string {
	_, table := splitName(name)
	return table
}

// Reads returns the datasets a step consumes, qualified.
func (s *Step) Reads() []string {
	var in string
	switch s.Kind {
	case KindData:
		in = s.Data.Set
	case KindSort:
		in = s.Sort.Input
	case KindMeans:
		in = s.Means.Input
	case KindFreq:
		in = s.Freq.Input
	case KindPrint:
		in = s.Print.Input
	}
	if in == "" {
		return nil
	}
	return []string{Qualify(in)}
}

// Writes returns the datasets a step produces, qualified.
func (s *Step) Writes() []string {
	switch s.Kind {
	case KindData:
		return []string{Qualify(s.Data.Out)}
	case KindSort:
		out := s.Sort.Out
		if out == "" {
			out = s.Sort.Input
		}
		return []string{Qualify(out)}
	case KindMeans:
		if s.Means.Out != "" {
			return []string{Qualify(s.Means.Out)}
		}
	case KindFreq:
		return freqOutputs(s.Freq)
	}
	return nil
}

func freqOutputs(f *FreqStep) []string {
	if f.Out == "" {
		return nil
	}
	if len(f.Tables) == 1 {
		return []string{Qualify(f.Out)}
	}
	out := make([]string, len(f.Tables))
	for i, t := range f.Tables {
		out[i] = Qualify(f.Out + "_" + t)
	}
	return out
}

// resolvePath anchors a program-relative path.
func (p *Program) resolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) || p.Dir == "" {
		return path
	}
	return filepath.Join(p.Dir, path)
}

// Step returns the step called name.
func (p *Program) Step(name string) (*Step, bool) {
	for _, s := range p.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}
