package datastep

import (
	"fmt"

	"github.com/leapstack-labs/leapstep/pkg/array"
	"github.com/leapstack-labs/leapstep/pkg/core"
	"github.com/leapstack-labs/leapstep/pkg/dataset"
	"github.com/leapstack-labs/leapstep/pkg/retain"
	"github.com/leapstack-labs/leapstep/pkg/value"
)

// Session is the statement executor's view of a running DATA step. It is
// only valid for the duration of the Run that created it.
type Session struct {
	step   *Step
	res    *Result
	out    *dataset.Dataset
	row    *dataset.Row
	ledger *retain.Ledger
	arrays *array.Index
	seen   map[string]bool

	n              int
	deleted        bool
	explicitOutput bool
	stopped        bool
}

func (s *Session) begin(n int) {
	s.n = n
	s.deleted = false
	s.explicitOutput = false
	s.row.Reset(s.ledger)
}

// load copies an input row into the working row after reset.
func (s *Session) load(in *dataset.Row) error {
	inCat := in.Catalog()
	for i := 0; i < inCat.Len(); i++ {
		if err := s.row.Set(inCat.At(i).Name, in.At(i)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) emit() error {
	if err := s.out.Append(s.row.Clone()); err != nil {
		return err
	}
	s.res.Emitted++
	return nil
}

// N is the 1-based iteration counter.
func (s *Session) N() int { return s.n }

// Row is the working row.
func (s *Session) Row() *dataset.Row { return s.row }

// Catalog is the output catalog, which grows as variables are created.
func (s *Session) Catalog() *dataset.Catalog { return s.row.Catalog() }

// Get reads a variable. Unknown names are an error; reads never create.
func (s *Session) Get(name string) (value.Value, error) {
	return s.row.Get(name)
}

// Set writes an existing variable.
func (s *Session) Set(name string, v value.Value) error {
	return s.row.Set(name, v)
}

// Assign writes name, creating it on first assignment.
func (s *Session) Assign(name string, v value.Value) error {
	return s.row.GetOrCreate(name, v)
}

// Retain declares names retained. On first declaration a variable that is
// still missing in the working row takes its initial value at once, so the
// current iteration sees it. Surplus initial values are logged and kept in
// Result.Warnings.
func (s *Session) Retain(names []string, initial []value.Value) error {
	added, err := s.ledger.Declare(s.Catalog(), names, initial)
	if err != nil {
		if !core.IsWarning(err) {
			return err
		}
		s.warn(err)
	}
	for _, name := range added {
		cur, gerr := s.row.Get(name)
		if gerr != nil || !cur.IsMissing() {
			continue
		}
		if v, ok := s.ledger.Retained(name); ok {
			if err := s.row.Set(name, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// FirstSeen reports whether key is new to this run and records it.
// Declarations that cannot be checked against the ledger, such as
// wildcards, use it to run once.
func (s *Session) FirstSeen(key string) bool {
	if s.seen[key] {
		return false
	}
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	s.seen[key] = true
	return true
}

// IsRetained reports whether name is in the retain ledger.
func (s *Session) IsRetained(name string) bool { return s.ledger.Has(name) }

// DeclareArray declares an array. Element variables not yet in the
// catalog are created numeric.
func (s *Session) DeclareArray(name string, dims []int, elements []string) error {
	cat := s.Catalog()
	for _, el := range elements {
		if !cat.Has(el) {
			if _, err := cat.Add(dataset.Num(el)); err != nil {
				return err
			}
		}
	}
	return s.arrays.Declare(cat, name, dims, elements)
}

// Array returns a declared array.
func (s *Session) Array(name string) (*array.Array, bool) { return s.arrays.Get(name) }

// Resolve maps 1-based indices to the element variable name.
func (s *Session) Resolve(name string, indices ...int) (string, error) {
	return s.arrays.Resolve(name, indices...)
}

// ArrayGet reads an array element.
func (s *Session) ArrayGet(name string, indices ...int) (value.Value, error) {
	v, err := s.arrays.Resolve(name, indices...)
	if err != nil {
		return value.Missing(), err
	}
	return s.row.Get(v)
}

// ArraySet writes an array element.
func (s *Session) ArraySet(name string, val value.Value, indices ...int) error {
	v, err := s.arrays.Resolve(name, indices...)
	if err != nil {
		return err
	}
	return s.row.Set(v, val)
}

// Render formats v through a named format.
func (s *Session) Render(formatName string, v value.Value) (string, error) {
	if s.step.cfg.Formats == nil {
		return "", &core.Error{Kind: core.KindUnknownFormat, Op: "format.render", Name: formatName}
	}
	return s.step.cfg.Formats.Render(formatName, v)
}

// Output appends the working row now. Once called, the iteration's
// implicit emit is skipped; it may be called more than once.
func (s *Session) Output() error {
	s.explicitOutput = true
	return s.emit()
}

// Delete suppresses the implicit emit for this iteration. Retain sync
// still happens.
func (s *Session) Delete() { s.deleted = true }

// Stop ends the step after the current iteration.
func (s *Session) Stop() { s.stopped = true }

// Put records a PUT line.
func (s *Session) Put(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	s.res.Log = append(s.res.Log, line)
	s.step.logger.Info(line, "step", s.out.Name, "row", s.n)
}

func (s *Session) warn(err error) {
	s.res.Warnings = append(s.res.Warnings, err)
	s.step.logger.Warn("data step warning", "step", s.out.Name, "row", s.n, "warning", err.Error())
}
