package format

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/leapstack-labs/leapstep/pkg/core"
	"github.com/leapstack-labs/leapstep/pkg/value"
	"gopkg.in/yaml.v3"
)

// RangeSpec is the file form of a Range:
//
//	- {low: 0, high: 50, high_exclusive: true, label: Fail}
//	- {low: low, high: 0, label: Negative}
//	- {value: M, label: Male}
//	- {missing: true, label: "n/a"}
//	- {other: true, label: Unknown}
//
// The strings low and high (any case) are the unbounded keywords on their
// respective side.
type RangeSpec struct {
	Low           any    `yaml:"low" mapstructure:"low"`
	High          any    `yaml:"high" mapstructure:"high"`
	LowExclusive  bool   `yaml:"low_exclusive" mapstructure:"low_exclusive"`
	HighExclusive bool   `yaml:"high_exclusive" mapstructure:"high_exclusive"`
	Value         any    `yaml:"value" mapstructure:"value"`
	Missing       bool   `yaml:"missing" mapstructure:"missing"`
	Other         bool   `yaml:"other" mapstructure:"other"`
	Label         string `yaml:"label" mapstructure:"label"`
}

// Range builds the Range s declares.
func (s RangeSpec) Range() (Range, error) {
	switch {
	case s.Other:
		return Other(s.Label), nil
	case s.Missing:
		return MissingRange(s.Label), nil
	case s.Value != nil:
		v, err := value.FromAny(s.Value)
		if err != nil {
			return Range{}, err
		}
		return Single(v, s.Label), nil
	}

	low, err := specBound(s.Low, "low", s.LowExclusive, ExclusiveAbove)
	if err != nil {
		return Range{}, fmt.Errorf("low: %w", err)
	}
	high, err := specBound(s.High, "high", s.HighExclusive, ExclusiveBelow)
	if err != nil {
		return Range{}, fmt.Errorf("high: %w", err)
	}
	return Range{Low: low, High: high, Label: s.Label}, nil
}

func specBound(raw any, keyword string, exclusive bool, exclusiveKind BoundKind) (Bound, error) {
	if raw == nil {
		return Bound{}, fmt.Errorf("bound is required")
	}
	if s, ok := raw.(string); ok && strings.EqualFold(s, keyword) {
		if keyword == "low" {
			return Low(), nil
		}
		return High(), nil
	}
	v, err := value.FromAny(raw)
	if err != nil {
		return Bound{}, err
	}
	if exclusive {
		return Bound{Kind: exclusiveKind, Value: v}, nil
	}
	return At(v), nil
}

// Ranges converts a list of specs.
func Ranges(specs []RangeSpec) ([]Range, error) {
	out := make([]Range, len(specs))
	for i, s := range specs {
		r, err := s.Range()
		if err != nil {
			return nil, fmt.Errorf("range %d: %w", i+1, err)
		}
		out[i] = r
	}
	return out, nil
}

// LoadYAML reads a document mapping format names to range lists and
// declares each table in c, in document order. Warnings from Declare are
// collected and returned after every table is loaded.
func LoadYAML(r io.Reader, c *Catalog) ([]error, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse formats: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("formats document must be a mapping of name to ranges")
	}

	var warnings []error
	for i := 0; i+1 < len(root.Content); i += 2 {
		name := root.Content[i].Value
		var specs []RangeSpec
		if err := root.Content[i+1].Decode(&specs); err != nil {
			return warnings, fmt.Errorf("format %s: %w", name, err)
		}
		ranges, err := Ranges(specs)
		if err != nil {
			return warnings, fmt.Errorf("format %s: %w", name, err)
		}
		if err := c.Declare(name, ranges); err != nil {
			if core.IsWarning(err) {
				warnings = append(warnings, err)
				continue
			}
			return warnings, err
		}
	}
	return warnings, nil
}
