package group

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapstep/pkg/core"
	"github.com/leapstack-labs/leapstep/pkg/value"
)

// Stat is a statistic computed per group and analysis variable.
type Stat int

// Statistics. N is the group size, missing values included; NonMissing
// and NMiss split it. Everything else works on non-missing values only.
const (
	N Stat = iota
	NonMissing
	NMiss
	Mean
	Median
	Std
	StdPop
	Min
	Max
	Sum
	Range
)

var statNames = []string{
	N:          "N",
	NonMissing: "NonMissing",
	NMiss:      "NMiss",
	Mean:       "Mean",
	Median:     "Median",
	Std:        "Std",
	StdPop:     "StdPop",
	Min:        "Min",
	Max:        "Max",
	Sum:        "Sum",
	Range:      "Range",
}

var statAliases = map[string]Stat{
	"stddev":  Std,
	"nonmiss": NonMissing,
	"count":   NonMissing,
}

func (s Stat) String() string {
	if s >= 0 && int(s) < len(statNames) {
		return statNames[s]
	}
	return fmt.Sprintf("Stat(%d)", int(s))
}

// DefaultStats are the statistics PROC MEANS reports when none are named.
var DefaultStats = []Stat{N, Mean, Std, Min, Max}

// ParseStat reads a statistic name, case-insensitively.
func ParseStat(name string) (Stat, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for i, n := range statNames {
		if strings.ToLower(n) == key {
			return Stat(i), nil
		}
	}
	if s, ok := statAliases[key]; ok {
		return s, nil
	}
	return 0, core.Errorf(core.KindInvalidStatRequest, "group.stat", name, "unknown statistic")
}

// ParseStats reads a list of statistic names. An empty list yields
// DefaultStats.
func ParseStats(names []string) ([]Stat, error) {
	if len(names) == 0 {
		return slices.Clone(DefaultStats), nil
	}
	out := make([]Stat, 0, len(names))
	for _, n := range names {
		s, err := ParseStat(n)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// sample is the values of one variable within one group.
type sample struct {
	size   int
	values []float64
}

func (s sample) compute(stat Stat) value.Value {
	nm := len(s.values)
	switch stat {
	case N:
		return value.Int(s.size)
	case NonMissing:
		return value.Int(nm)
	case NMiss:
		return value.Int(s.size - nm)
	}
	if nm == 0 {
		return value.Missing()
	}

	switch stat {
	case Sum:
		return value.Num(s.sum())
	case Mean:
		return value.Num(s.sum() / float64(nm))
	case Median:
		return value.Num(median(s.values))
	case Std:
		if nm < 2 {
			return value.Missing()
		}
		return value.Num(math.Sqrt(s.squares() / float64(nm-1)))
	case StdPop:
		return value.Num(math.Sqrt(s.squares() / float64(nm)))
	case Min:
		return value.Num(slices.Min(s.values))
	case Max:
		return value.Num(slices.Max(s.values))
	case Range:
		return value.Num(slices.Max(s.values) - slices.Min(s.values))
	}
	return value.Missing()
}

func (s sample) sum() float64 {
	var total float64
	for _, v := range s.values {
		total += v
	}
	return total
}

// squares is the sum of squared deviations from the mean.
func (s sample) squares() float64 {
	mean := s.sum() / float64(len(s.values))
	var ss float64
	for _, v := range s.values {
		d := v - mean
		ss += d * d
	}
	return ss
}

// median sorts a copy; even counts average the two central values.
func median(values []float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
