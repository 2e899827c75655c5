package pipeline

import (
	"image"
	"image/color"
	"math/rand"
	"time"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/crackwatch/model"
	"github.com/khaledhikmat/crackwatch/service/config"
)

// NewFrameSource picks the framer named by params.Type.
func NewFrameSource(params config.FramerParameters) FrameSource {
	if params.Type == "random" {
		return newRandomFramer(params)
	}
	return newDeviceFramer(params)
}

// randomFramer synthesises frames at the configured rate. With a Limit it
// reports end of stream after that many frames.
type randomFramer struct {
	params config.FramerParameters
	rnd    *rand.Rand
	seq    uint64
	opened bool
	next   time.Time
}

func newRandomFramer(params config.FramerParameters) *randomFramer {
	if params.Width <= 0 {
		params.Width = 640
	}
	if params.Height <= 0 {
		params.Height = 480
	}
	return &randomFramer{
		params: params,
	}
}

func (f *randomFramer) Open() error {
	if f.opened {
		return xerrors.Errorf("random framer already open: %w", model.ErrDeviceUnavailable)
	}
	f.opened = true
	f.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	f.next = time.Now()
	return nil
}

func (f *randomFramer) Read() (model.Frame, error) {
	if !f.opened {
		return model.Frame{}, model.ErrEndOfStream
	}
	if f.params.Limit > 0 && f.seq >= uint64(f.params.Limit) {
		return model.Frame{}, model.ErrEndOfStream
	}

	if f.params.FPS > 0 {
		if wait := time.Until(f.next); wait > 0 {
			time.Sleep(wait)
		}
		f.next = f.next.Add(time.Second / time.Duration(f.params.FPS))
	}

	f.seq++
	return model.Frame{
		Image:      f.render(),
		Seq:        f.seq,
		CapturedAt: time.Now(),
	}, nil
}

func (f *randomFramer) render() *image.RGBA {
	w, h := f.params.Width, f.params.Height
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	// Concrete-grey background with a moving diagonal seam
	shift := int(f.seq*4) % w
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(110 + f.rnd.Intn(40))
			if d := (x + y + shift) % w; d < 3 {
				v = 30
			}
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func (f *randomFramer) Close() error {
	f.opened = false
	return nil
}

func (f *randomFramer) Name() string {
	return "random"
}
