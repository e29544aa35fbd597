package analysis

import (
	"math"

	"github.com/montanaflynn/stats"
)

// robustSpread is 1.4826*MAD, a standard deviation estimate that ignores
// stray specks far from the writing.
func robustSpread(xs []float64) float64 {
	mad, err := stats.MedianAbsoluteDeviation(xs)
	if err != nil {
		return 0
	}
	return 1.4826 * mad
}

func clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// similarity maps an absolute difference onto 0..100
func similarity(delta, tolerance float64) int {
	if tolerance <= 0 {
		tolerance = 1
	}
	v := 100 * math.Exp(-math.Abs(delta)/tolerance)
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Round(clip(v, 0, 100)))
}
