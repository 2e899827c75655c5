//go:build gocv

package pipeline

import (
	"strconv"
	"time"

	"gocv.io/x/gocv"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/crackwatch/model"
	"github.com/khaledhikmat/crackwatch/service/config"
	"github.com/khaledhikmat/crackwatch/vision"
)

// deviceFramer reads from a local camera index or an RTSP/file URL.
type deviceFramer struct {
	params config.FramerParameters
	webcam *gocv.VideoCapture
	mat    gocv.Mat
	seq    uint64
}

func newDeviceFramer(params config.FramerParameters) FrameSource {
	return &deviceFramer{params: params}
}

func (f *deviceFramer) Open() error {
	var device interface{} = f.params.Device
	if idx, err := strconv.Atoi(f.params.Device); err == nil {
		device = idx
	}

	webcam, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return xerrors.Errorf("opening %s: %v: %w", f.params.Device, err, model.ErrDeviceUnavailable)
	}
	if !webcam.IsOpened() {
		webcam.Close()
		return xerrors.Errorf("%s is not open: %w", f.params.Device, model.ErrDeviceUnavailable)
	}

	if f.params.Width > 0 && f.params.Height > 0 {
		webcam.Set(gocv.VideoCaptureFrameWidth, float64(f.params.Width))
		webcam.Set(gocv.VideoCaptureFrameHeight, float64(f.params.Height))
	}
	if f.params.FPS > 0 {
		webcam.Set(gocv.VideoCaptureFPS, float64(f.params.FPS))
	}

	f.webcam = webcam
	f.mat = gocv.NewMat()
	return nil
}

func (f *deviceFramer) Read() (model.Frame, error) {
	if f.webcam == nil {
		return model.Frame{}, model.ErrEndOfStream
	}
	if f.params.Limit > 0 && f.seq >= uint64(f.params.Limit) {
		return model.Frame{}, model.ErrEndOfStream
	}

	if ok := f.webcam.Read(&f.mat); !ok || f.mat.Empty() {
		return model.Frame{}, xerrors.Errorf("reading %s: %w", f.params.Device, model.ErrEndOfStream)
	}

	img, err := f.mat.ToImage()
	if err != nil {
		return model.Frame{}, xerrors.Errorf("converting frame from %s: %v: %w", f.params.Device, err, model.ErrDecode)
	}

	f.seq++
	return model.Frame{
		Image:      vision.ToRGBA(img),
		Seq:        f.seq,
		CapturedAt: time.Now(),
	}, nil
}

func (f *deviceFramer) Close() error {
	if f.webcam == nil {
		return nil
	}
	f.mat.Close()
	err := f.webcam.Close()
	f.webcam = nil
	return err
}

func (f *deviceFramer) Name() string {
	return "device:" + f.params.Device
}
