package starlark

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapstep/pkg/retain"
	"github.com/leapstack-labs/leapstep/pkg/value"
	"go.starlark.net/starlark"
)

// newBuiltins returns the predeclared functions and constants shared by
// every iteration. Functions locate the running session through the
// thread.
func newBuiltins(params map[string]any) (starlark.StringDict, error) {
	p, err := GoToStarlark(params)
	if err != nil {
		return nil, fmt.Errorf("params: %w", err)
	}
	p.Freeze()

	return starlark.StringDict{
		"retain":     starlark.NewBuiltin("retain", builtinRetain),
		"array":      starlark.NewBuiltin("array", builtinArray),
		"output":     starlark.NewBuiltin("output", builtinOutput),
		"delete":     starlark.NewBuiltin("delete", builtinDelete),
		"stop":       starlark.NewBuiltin("stop", builtinStop),
		"put":        starlark.NewBuiltin("put", builtinPut),
		"render":     starlark.NewBuiltin("render", builtinRender),
		"is_missing": starlark.NewBuiltin("is_missing", builtinIsMissing),
		"label":      starlark.NewBuiltin("label", builtinLabel),
		"missing":    Missing,
		"params":     p,
	}, nil
}

// retain(*names, init=None) declares variables retained. Names may be
// strings or lists of strings. A declaration takes effect once per run, so
// later iterations do not reset the carried values.
func builtinRetain(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	s, err := sessionOf(thread)
	if err != nil {
		return nil, err
	}
	var init starlark.Value = starlark.None
	for _, kv := range kwargs {
		if k, _ := starlark.AsString(kv[0]); k != "init" {
			return nil, fmt.Errorf("%s: unexpected keyword argument %s", b.Name(), kv[0])
		}
		init = kv[1]
	}

	var names []string
	for _, arg := range args {
		got, err := stringList(arg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		names = append(names, got...)
	}

	var initial []value.Value
	if init != starlark.None {
		seq, ok := init.(starlark.Indexable)
		if _, isStr := init.(starlark.String); !ok || isStr {
			seq = starlark.Tuple{init}
		}
		for i := 0; i < seq.Len(); i++ {
			v, err := FromStarlark(seq.Index(i))
			if err != nil {
				return nil, fmt.Errorf("%s: init[%d]: %w", b.Name(), i, err)
			}
			initial = append(initial, v)
		}
	}

	// A wildcard expands against the catalog of the moment, so it counts
	// as declared once its call site has run.
	site := thread.CallFrame(1).Pos.String()
	fresh := false
	for _, n := range names {
		if listKeyword(n) {
			if s.FirstSeen("retain:" + site + ":" + strings.ToUpper(strings.TrimSpace(n))) {
				fresh = true
			}
			continue
		}
		if !s.IsRetained(n) {
			fresh = true
		}
	}
	if !fresh {
		return starlark.None, nil
	}
	return starlark.None, s.Retain(names, initial)
}

// array(name, vars, dims=None) declares an array and returns its handle.
func builtinArray(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	s, err := sessionOf(thread)
	if err != nil {
		return nil, err
	}
	var (
		name string
		vars starlark.Value
		dims starlark.Value = starlark.None
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "vars", &vars, "dims?", &dims); err != nil {
		return nil, err
	}
	elements, err := stringList(vars)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}

	var shape []int
	if dims != starlark.None {
		parts, ok := dims.(starlark.Indexable)
		if !ok {
			parts = starlark.Tuple{dims}
		}
		shape = make([]int, parts.Len())
		for i := range shape {
			if err := starlark.AsInt(parts.Index(i), &shape[i]); err != nil {
				return nil, fmt.Errorf("%s: dims: %w", b.Name(), err)
			}
		}
	}

	if err := s.DeclareArray(name, shape, elements); err != nil {
		return nil, err
	}
	arr, _ := s.Array(name)
	return arrayValue{s: s, arr: arr}, nil
}

func builtinOutput(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	s, err := sessionOf(thread)
	if err != nil {
		return nil, err
	}
	return starlark.None, s.Output()
}

func builtinDelete(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	s, err := sessionOf(thread)
	if err != nil {
		return nil, err
	}
	s.Delete()
	return starlark.None, nil
}

func builtinStop(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	s, err := sessionOf(thread)
	if err != nil {
		return nil, err
	}
	s.Stop()
	return starlark.None, nil
}

// put(*values, sep=" ") writes one log line. Missing renders as ".".
func builtinPut(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	s, err := sessionOf(thread)
	if err != nil {
		return nil, err
	}
	sep := " "
	for _, kv := range kwargs {
		k, _ := starlark.AsString(kv[0])
		if k != "sep" {
			return nil, fmt.Errorf("%s: unexpected keyword argument %s", b.Name(), kv[0])
		}
		v, ok := starlark.AsString(kv[1])
		if !ok {
			return nil, fmt.Errorf("%s: sep must be a string", b.Name())
		}
		sep = v
	}

	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = displayString(arg)
	}
	s.Put("%s", strings.Join(parts, sep))
	return starlark.None, nil
}

// render(format, value) applies a user or builtin format.
func builtinRender(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	s, err := sessionOf(thread)
	if err != nil {
		return nil, err
	}
	var (
		name string
		v    starlark.Value
	)
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &name, &v); err != nil {
		return nil, err
	}
	val, err := FromStarlark(v)
	if err != nil {
		return nil, err
	}
	out, err := s.Render(name, val)
	if err != nil {
		return nil, err
	}
	return starlark.String(out), nil
}

// label(name, text) attaches a display label to a variable of the output
// dataset.
func builtinLabel(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	s, err := sessionOf(thread)
	if err != nil {
		return nil, err
	}
	var name, text string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &name, &text); err != nil {
		return nil, err
	}
	if err := s.Catalog().SetLabel(name, text); err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return starlark.None, nil
}

func builtinIsMissing(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &v); err != nil {
		return nil, err
	}
	return starlark.Bool(isMissing(v)), nil
}

func listKeyword(name string) bool {
	name = strings.TrimSpace(name)
	return strings.EqualFold(name, retain.All) ||
		strings.EqualFold(name, retain.Numeric) ||
		strings.EqualFold(name, retain.Character)
}

func displayString(v starlark.Value) string {
	if s, ok := starlark.AsString(v); ok {
		return s
	}
	if val, err := FromStarlark(v); err == nil {
		return val.Display(value.DefaultDisplay)
	}
	return v.String()
}

func stringList(v starlark.Value) ([]string, error) {
	if s, ok := starlark.AsString(v); ok {
		return []string{s}, nil
	}
	seq, ok := v.(starlark.Indexable)
	if !ok {
		return nil, fmt.Errorf("want a name or a list of names, got %s", v.Type())
	}
	out := make([]string, seq.Len())
	for i := range out {
		s, ok := starlark.AsString(seq.Index(i))
		if !ok {
			return nil, fmt.Errorf("name %d is %s, not a string", i, seq.Index(i).Type())
		}
		out[i] = s
	}
	return out, nil
}
