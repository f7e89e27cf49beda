package series

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"

	"bandstretch/internal/models"
)

// Resample linearly interpolates src onto target evenly spaced points.
// Output index i samples the source at position i*(L-1)/(target-1), so the
// first and last samples are preserved exactly and no value falls outside
// the source range.
func Resample(src models.Series, target int) (models.Series, error) {
	if target < 2 {
		return nil, errors.Errorf("resample target length must be at least 2, got %d", target)
	}
	if len(src) == 0 {
		return nil, errors.New("cannot resample an empty series")
	}

	out := make(models.Series, target)

	// A single sample has nothing to interpolate between
	if len(src) == 1 {
		for i := range out {
			out[i] = src[0]
		}
		return out, nil
	}

	xs := make([]float64, len(src))
	for i := range xs {
		xs[i] = float64(i)
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, src); err != nil {
		return nil, errors.Wrap(err, "failed to fit linear interpolant")
	}

	lo, hi := floats.Min(src), floats.Max(src)
	last := float64(len(src) - 1)
	span := float64(target - 1)
	for i := range out {
		pos := float64(i) * last / span
		// Guard the last position against rounding past the final knot
		pos = math.Min(pos, last)
		out[i] = clamp(pl.Predict(pos), lo, hi)
	}

	return out, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
