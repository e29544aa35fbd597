package analysis

import (
	"context"
	"image"
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	inkThreshold = 128
	// maxRegressionSamples bounds the points fed to the slope fit
	maxRegressionSamples = 20000
)

// ExtractFeatures measures the ink of a normalized image. Ink is whichever
// of dark or light pixels is the minority, so both pen on paper and chalk on
// board work.
func ExtractFeatures(ctx context.Context, img *image.Gray) (FeatureVector, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return FeatureVector{}, nil
	}

	dark := 0
	for _, v := range img.Pix {
		if v < inkThreshold {
			dark++
		}
	}
	invert := dark*2 > len(img.Pix)

	isInk := func(x, y int) bool {
		v := img.GrayAt(b.Min.X+x, b.Min.Y+y).Y
		if invert {
			return v >= inkThreshold
		}
		return v < inkThreshold
	}

	var (
		xs, ys    []float64
		connected int
	)
	for y := 0; y < h; y++ {
		if y%64 == 0 {
			if err := ctx.Err(); err != nil {
				return FeatureVector{}, err
			}
		}
		for x := 0; x < w; x++ {
			if !isInk(x, y) {
				continue
			}
			xs = append(xs, float64(x))
			// image y grows downwards; flip so positive slope means rising ink
			ys = append(ys, float64(h-1-y))
			if x+1 < w && isInk(x+1, y) {
				connected++
			}
		}
	}

	ink := len(xs)
	fv := FeatureVector{
		InkPixels:  ink,
		InkDensity: float64(ink) / float64(w*h),
	}
	if ink == 0 {
		return fv, nil
	}

	fv.Continuity = float64(connected) / float64(ink)
	fv.Spread = robustSpread(ys) / float64(h)
	fv.Slope = inkSlope(xs, ys)

	return fv, nil
}

// inkSlope fits y = a + b·x over (a subsample of) the ink and returns the
// line's angle in degrees.
func inkSlope(xs, ys []float64) float64 {
	if len(xs) < 2 {
		return 0
	}

	if step := len(xs)/maxRegressionSamples + 1; step > 1 {
		sx := make([]float64, 0, len(xs)/step+1)
		sy := make([]float64, 0, len(ys)/step+1)
		for i := 0; i < len(xs); i += step {
			sx = append(sx, xs[i])
			sy = append(sy, ys[i])
		}
		xs, ys = sx, sy
	}

	if _, sd := stat.MeanStdDev(xs, nil); sd == 0 || math.IsNaN(sd) {
		return 0
	}

	_, beta := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return 0
	}
	return math.Atan(beta) * 180 / math.Pi
}
