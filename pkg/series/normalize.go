package series

import (
	"math"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"bandstretch/internal/models"
)

// DegeneratePolicy decides what Normalize does with a constant series
type DegeneratePolicy int

const (
	// DegenerateError makes Normalize return ErrDegenerateSeries
	DegenerateError DegeneratePolicy = iota

	// DegenerateMidpoint maps every sample to 0.5
	DegenerateMidpoint
)

// String returns the configuration spelling of the policy
func (p DegeneratePolicy) String() string {
	switch p {
	case DegenerateError:
		return "error"
	case DegenerateMidpoint:
		return "midpoint"
	default:
		return "unknown"
	}
}

// ParseDegeneratePolicy converts "error" or "midpoint" into a policy
func ParseDegeneratePolicy(s string) (DegeneratePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "error":
		return DegenerateError, nil
	case "midpoint":
		return DegenerateMidpoint, nil
	default:
		return DegenerateError, errors.Errorf("invalid degenerate policy: %s (must be error or midpoint)", s)
	}
}

// Normalize rescales s into [0,1] using its own minimum and maximum. The
// minimum maps to exactly 0 and the maximum to exactly 1.
func Normalize(s models.Series, policy DegeneratePolicy) (models.Series, error) {
	if len(s) == 0 {
		return nil, errors.New("cannot normalize an empty series")
	}
	for i, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.Errorf("sample %d is not finite", i)
		}
	}

	lo, hi := floats.Min(s), floats.Max(s)
	out := make(models.Series, len(s))

	if hi == lo {
		switch policy {
		case DegenerateMidpoint:
			for i := range out {
				out[i] = 0.5
			}
			return out, nil
		default:
			return nil, errors.Wrapf(ErrDegenerateSeries, "all %d samples equal %g", len(s), lo)
		}
	}

	span := hi - lo
	for i, v := range s {
		out[i] = clamp((v-lo)/span, 0, 1)
	}
	return out, nil
}

// Summary describes a series for logging
type Summary struct {
	Len    int
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

// Describe computes summary statistics of s
func Describe(s models.Series) Summary {
	sum := Summary{Len: len(s)}
	if len(s) == 0 {
		return sum
	}
	sum.Min = floats.Min(s)
	sum.Max = floats.Max(s)
	sum.Mean = stat.Mean(s, nil)
	if len(s) > 1 {
		sum.StdDev = stat.StdDev(s, nil)
	}
	return sum
}
