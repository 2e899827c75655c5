package vision

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaledhikmat/crackwatch/model"
)

func gray(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 90, G: 90, B: 90, A: 255})
		}
	}
	return img
}

func TestFilter(t *testing.T) {
	raw := []model.Detection{
		{Label: "crack", Confidence: 0.9},
		{Label: "Crack", Confidence: 0.72},
		{Label: "crack", Confidence: 0.71},
		{Label: "stain", Confidence: 0.95},
	}

	kept, positive := Filter(raw, 0.72, []string{"crack"}, []string{"crack"})
	require.Len(t, kept, 2)
	assert.True(t, positive)

	kept, positive = Filter(raw, 0.5, nil, []string{"crack"})
	assert.Len(t, kept, 4)
	assert.True(t, positive)

	kept, positive = Filter(raw, 0.92, nil, []string{"crack"})
	require.Len(t, kept, 1)
	assert.Equal(t, "stain", kept[0].Label)
	assert.False(t, positive)

	kept, positive = Filter(nil, 0.5, nil, []string{"crack"})
	assert.Empty(t, kept)
	assert.False(t, positive)
}

func TestBest(t *testing.T) {
	_, ok := Best(nil)
	assert.False(t, ok)

	best, ok := Best([]model.Detection{{Label: "a", Confidence: 0.3}, {Label: "b", Confidence: 0.8}})
	require.True(t, ok)
	assert.Equal(t, "b", best.Label)
}

func TestJPEGRoundTripKeepsDimensions(t *testing.T) {
	for _, size := range []image.Point{{640, 480}, {1, 1}, {33, 17}} {
		data, err := EncodeJPEG(gray(size.X, size.Y), 85)
		require.NoError(t, err)

		decoded, err := Decode(data, 0)
		require.NoError(t, err)
		assert.Equal(t, size.X, decoded.Bounds().Dx())
		assert.Equal(t, size.Y, decoded.Bounds().Dy())
	}
}

func TestEncodeRejectsEmpty(t *testing.T) {
	_, err := EncodeJPEG(image.NewRGBA(image.Rect(0, 0, 0, 0)), 85)
	assert.Error(t, err)

	var missing *image.RGBA
	_, err = EncodeJPEG(missing, 85)
	assert.Error(t, err)
}

// pngHeader returns a PNG signature and IHDR chunk claiming w x h pixels
// with no image data behind them.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 2 // truecolor

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestDecodeRejectsOversizedImages(t *testing.T) {
	_, err := Decode(pngHeader(100000, 100000), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrDecode))
	assert.Contains(t, err.Error(), "pixel limit")

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, gray(20, 10)))

	_, err = Decode(buf.Bytes(), 199)
	assert.True(t, errors.Is(err, model.ErrDecode))

	img, err := Decode(buf.Bytes(), 200)
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())
}

func TestDecode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, gray(20, 10)))

	img, err := Decode(buf.Bytes(), 0)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 20, 10), img.Bounds())

	_, err = Decode([]byte("definitely not an image"), 0)
	assert.True(t, errors.Is(err, model.ErrDecode))

	_, err = Decode(nil, 0)
	assert.True(t, errors.Is(err, model.ErrDecode))
}

func TestAnnotateLeavesSourceUntouched(t *testing.T) {
	src := gray(100, 80)
	before := append([]uint8(nil), src.Pix...)

	out := Annotate(src, []model.Detection{
		{Label: "crack", Confidence: 0.9, Box: model.Box{X1: 10, Y1: 20, X2: 60, Y2: 70}},
		{Label: "outside", Confidence: 0.9, Box: model.Box{X1: 500, Y1: 500, X2: 600, Y2: 600}},
	})

	assert.Equal(t, before, src.Pix)
	assert.Equal(t, src.Bounds(), out.Bounds())
	assert.Equal(t, boxColor, out.RGBAAt(10, 20))
	assert.Equal(t, boxColor, out.RGBAAt(59, 69))
	assert.NotEqual(t, boxColor, out.RGBAAt(35, 45))
}
