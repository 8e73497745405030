package domain

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Summary describes the finite values of a variable.
type Summary struct {
	Name    string
	Count   int
	Missing int
	Min     float64
	Max     float64
	Mean    float64
}

// LogAttrs returns the summary as slog key-value pairs.
func (s Summary) LogAttrs() []any {
	return []any{
		"variable", s.Name,
		"count", s.Count,
		"missing", s.Missing,
		"min", s.Min,
		"max", s.Max,
		"mean", s.Mean,
	}
}

// Summarize computes count, min, max and mean over the finite values of v.
// Min, Max and Mean are NaN when v has no finite value.
func Summarize(v *Variable) Summary {
	finite := make([]float64, 0, len(v.Data))
	for _, x := range v.Data {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			finite = append(finite, x)
		}
	}
	s := Summary{
		Name:    v.Name,
		Count:   len(finite),
		Missing: len(v.Data) - len(finite),
		Min:     math.NaN(),
		Max:     math.NaN(),
		Mean:    math.NaN(),
	}
	if len(finite) == 0 {
		return s
	}
	s.Min = floats.Min(finite)
	s.Max = floats.Max(finite)
	s.Mean = floats.Sum(finite) / float64(len(finite))
	return s
}

// CountAbove returns how many values of v are strictly greater than limit.
func CountAbove(v *Variable, limit float64) int {
	n := 0
	for _, x := range v.Data {
		if x > limit {
			n++
		}
	}
	return n
}
