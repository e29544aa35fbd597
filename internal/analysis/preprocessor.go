package analysis

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/montanaflynn/stats"
)

// DefaultMaxPixels bounds the decoded size of an upload (40 MP)
const DefaultMaxPixels = 40_000_000

// ErrTooManyPixels is returned for images whose decoded bitmap exceeds the
// pixel limit, however small the encoded file is
var ErrTooManyPixels = errors.New("image dimensions exceed pixel limit")

// Preprocessor turns an uploaded photo into the canonical form scorers read:
// bounded size, single channel, full intensity range.
type Preprocessor struct {
	maxEdge   int
	maxPixels int
}

// NewPreprocessor creates a preprocessor that fits images inside maxEdge².
// maxPixels <= 0 means DefaultMaxPixels.
func NewPreprocessor(maxEdge, maxPixels int) *Preprocessor {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &Preprocessor{maxEdge: maxEdge, maxPixels: maxPixels}
}

// Process decodes data and normalizes it. The header is read first so an
// oversized bitmap is refused before any pixel is allocated.
func (p *Preprocessor) Process(data []byte) (*image.Gray, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(p.maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d > %d", ErrTooManyPixels, cfg.Width, cfg.Height, p.maxPixels)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("decode image: empty bounds %v", b)
	}

	fitted := imaging.Fit(img, p.maxEdge, p.maxEdge, imaging.Lanczos)
	gray := toGray(imaging.Grayscale(fitted))

	return stretch(gray), nil
}

// EncodePNG serializes a processed image for storage
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// toGray copies the (already equal) channels of a grayscaled NRGBA image
// into a single-channel image. Transparent pixels count as paper.
func toGray(src *image.NRGBA) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := src.NRGBAAt(b.Min.X+x, b.Min.Y+y)
			// composite over white
			v := (uint32(c.R)*uint32(c.A) + 255*(255-uint32(c.A))) / 255
			dst.SetGray(x, y, color.Gray{Y: uint8(v)})
		}
	}
	return dst
}

// stretch maps the 1st..99th intensity percentiles onto 0..255. A flat
// image is returned unchanged.
func stretch(img *image.Gray) *image.Gray {
	data := make(stats.Float64Data, len(img.Pix))
	for i, v := range img.Pix {
		data[i] = float64(v)
	}

	lo, err := stats.PercentileNearestRank(data, 1)
	if err != nil {
		return img
	}
	hi, err := stats.PercentileNearestRank(data, 99)
	if err != nil || hi <= lo {
		return img
	}

	scale := 255 / (hi - lo)
	for i, v := range img.Pix {
		img.Pix[i] = uint8(clip((float64(v)-lo)*scale, 0, 255) + 0.5)
	}
	return img
}
