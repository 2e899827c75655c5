//go:build !gocv

package pipeline

import (
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/crackwatch/model"
	"github.com/khaledhikmat/crackwatch/service/config"
)

type deviceFramer struct {
	params config.FramerParameters
}

func newDeviceFramer(params config.FramerParameters) FrameSource {
	return &deviceFramer{params: params}
}

func (f *deviceFramer) Open() error {
	return xerrors.Errorf("device %s needs a gocv build: %w", f.params.Device, model.ErrDeviceUnavailable)
}

func (f *deviceFramer) Read() (model.Frame, error) {
	return model.Frame{}, model.ErrEndOfStream
}

func (f *deviceFramer) Close() error {
	return nil
}

func (f *deviceFramer) Name() string {
	return "device:" + f.params.Device
}
