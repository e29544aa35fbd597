package analysis

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreprocessorFitsInsideBound(t *testing.T) {
	tests := []struct {
		name   string
		w, h   int
		wantW  int
		wantH  int
		encode func(*testing.T, image.Image) []byte
	}{
		{"landscape jpeg", 1200, 600, 400, 200, encodeJPEG},
		{"portrait png", 300, 900, 133, 400, encodePNG},
		{"already small", 200, 100, 200, 100, encodePNG},
	}

	p := NewPreprocessor(400, DefaultMaxPixels)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := p.Process(tt.encode(t, handwriting(tt.w, tt.h)))
			require.NoError(t, err)

			assert.Equal(t, tt.wantW, out.Bounds().Dx())
			assert.Equal(t, tt.wantH, out.Bounds().Dy())
		})
	}
}

func TestPreprocessorStretchesContrast(t *testing.T) {
	// low contrast: ink at 100, paper at 150
	src := image.NewGray(image.Rect(0, 0, 50, 50))
	for y := 0; y < 50; y++ {
		for x := 0; x < 50; x++ {
			v := uint8(150)
			if x > 20 && x < 30 {
				v = 100
			}
			src.SetGray(x, y, color.Gray{Y: v})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	out, err := NewPreprocessor(400, DefaultMaxPixels).Process(buf.Bytes())
	require.NoError(t, err)

	lo, hi := uint8(255), uint8(0)
	for _, v := range out.Pix {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	assert.Equal(t, uint8(0), lo)
	assert.Equal(t, uint8(255), hi)
}

func TestPreprocessorLeavesFlatImage(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 10, 10))
	for i := range src.Pix {
		src.Pix[i] = 90
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	out, err := NewPreprocessor(400, DefaultMaxPixels).Process(buf.Bytes())
	require.NoError(t, err)
	for _, v := range out.Pix {
		assert.Equal(t, uint8(90), v)
	}
}

func TestPreprocessorRejectsUndecodable(t *testing.T) {
	// JPEG magic followed by junk
	data := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0x42}, 64)...)
	_, err := NewPreprocessor(400, DefaultMaxPixels).Process(data)
	assert.Error(t, err)
}

func TestPreprocessorRejectsTooManyPixels(t *testing.T) {
	tests := []struct {
		name      string
		data      func(t *testing.T) []byte
		maxPixels int
	}{
		{"header claims 100000x100000", func(*testing.T) []byte { return pngHeader(100000, 100000) }, DefaultMaxPixels},
		{"real png over a small limit", func(t *testing.T) []byte { return encodePNG(t, handwriting(200, 100)) }, 10000},
		{"jpeg over a small limit", func(t *testing.T) []byte { return encodeJPEG(t, handwriting(200, 100)) }, 19999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPreprocessor(400, tt.maxPixels).Process(tt.data(t))
			assert.ErrorIs(t, err, ErrTooManyPixels)
		})
	}
}

func TestPreprocessorAcceptsImageAtPixelLimit(t *testing.T) {
	out, err := NewPreprocessor(400, 20000).Process(encodePNG(t, handwriting(200, 100)))
	require.NoError(t, err)
	assert.Equal(t, 200, out.Bounds().Dx())
}

func TestEncodePNG(t *testing.T) {
	img := grayFrom(8, 8, func(x, y int) bool { return x == y })
	data, err := EncodePNG(img)
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())
}
