package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/crackwatch/model"
)

var boxColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}

// DefaultMaxPixels applies when Decode is given no cap.
const DefaultMaxPixels = 40_000_000

// Decode interprets jpeg, png, bmp or webp bytes. Images whose header
// claims more than maxPixels are rejected before any pixel is decoded.
func Decode(data []byte, maxPixels int) (*image.RGBA, error) {
	if len(data) == 0 {
		return nil, xerrors.Errorf("empty upload: %w", model.ErrDecode)
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, xerrors.Errorf("%v: %w", err, model.ErrDecode)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, xerrors.Errorf("decoded image is empty: %w", model.ErrDecode)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, xerrors.Errorf("image is %dx%d, above the %d pixel limit: %w", cfg.Width, cfg.Height, maxPixels, model.ErrDecode)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, xerrors.Errorf("%v: %w", err, model.ErrDecode)
	}
	rgba := ToRGBA(img)
	if rgba.Bounds().Empty() {
		return nil, xerrors.Errorf("decoded image is empty: %w", model.ErrDecode)
	}
	return rgba, nil
}

// ToRGBA copies img into a fresh RGBA whose bounds start at the origin.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

func EncodeJPEG(img *image.RGBA, quality int) ([]byte, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, xerrors.New("cannot encode an empty frame")
	}
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, xerrors.Errorf("encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Annotate draws each detection's box and label on a copy of src.
func Annotate(src *image.RGBA, detections []model.Detection) *image.RGBA {
	out := ToRGBA(src)
	for _, d := range detections {
		rect := d.Box.Rect().Intersect(out.Bounds())
		if rect.Empty() {
			continue
		}
		drawRect(out, rect, 2)
		drawLabel(out, fmt.Sprintf("%s %.2f", d.Label, d.Confidence), rect.Min)
	}
	return out
}

func drawRect(img *image.RGBA, r image.Rectangle, thickness int) {
	for t := 0; t < thickness; t++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, r.Min.Y+t, boxColor)
			img.SetRGBA(x, r.Max.Y-1-t, boxColor)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			img.SetRGBA(r.Min.X+t, y, boxColor)
			img.SetRGBA(r.Max.X-1-t, y, boxColor)
		}
	}
}

func drawLabel(img *image.RGBA, label string, at image.Point) {
	// Put the text above the box unless it would leave the image
	y := at.Y - 4
	if y < basicfont.Face7x13.Ascent {
		y = at.Y + basicfont.Face7x13.Ascent + 2
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(boxColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(at.X+2, y),
	}
	d.DrawString(label)
}
