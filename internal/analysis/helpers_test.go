package analysis

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/scriptmatch/internal/database"
)

// seededRepo returns a memory repository holding the catalog and the
// default user (id 1) without paying for password hashing.
func seededRepo(t *testing.T) *database.MemoryRepository {
	t.Helper()
	repo := database.NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.CreateUser(ctx, database.NewUser{Username: "default", PasswordHash: "x"})
	require.NoError(t, err)
	for _, nf := range database.Catalog {
		_, err := repo.CreateFont(ctx, nf)
		require.NoError(t, err)
	}
	return repo
}

// handwriting draws a few dark strokes on a light page
func handwriting(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 235, G: 230, B: 220, A: 255})
		}
	}
	ink := color.RGBA{R: 20, G: 20, B: 40, A: 255}
	for row := 1; row <= 3; row++ {
		base := row * h / 4
		for x := w / 10; x < w*9/10; x++ {
			// a wavy baseline two pixels thick
			y := base + (x/7)%5
			img.Set(x, y, ink)
			img.Set(x, y+1, ink)
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 60}))
	return buf.Bytes()
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// grayFrom builds a gray image where ink(x, y) pixels are black on white
func grayFrom(w, h int, ink func(x, y int) bool) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(255)
			if ink(x, y) {
				v = 0
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

// pngHeader returns a PNG holding only a signature and an IHDR chunk that
// claims w×h RGB pixels. Decoding the config succeeds; the pixels never exist.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	chunk := make([]byte, 4, 17)
	copy(chunk, "IHDR")
	chunk = binary.BigEndian.AppendUint32(chunk, w)
	chunk = binary.BigEndian.AppendUint32(chunk, h)
	// 8-bit RGB, deflate, adaptive filter, no interlace
	chunk = append(chunk, 8, 2, 0, 0, 0)

	_ = binary.Write(&buf, binary.BigEndian, uint32(len(chunk)-4))
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}
