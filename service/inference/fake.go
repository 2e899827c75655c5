package inference

import (
	"context"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/crackwatch/model"
	"github.com/khaledhikmat/crackwatch/service/config"
)

// Script returns the raw detections the fake reports for a frame.
type Script func(frame model.Frame) []model.Detection

// Periodic reports det on every frame whose sequence is a multiple of every.
func Periodic(every uint64, det model.Detection) Script {
	return func(frame model.Frame) []model.Detection {
		if every == 0 || frame.Seq%every != 0 {
			return nil
		}
		return []model.Detection{det}
	}
}

// Fixed reports the same detections for every frame.
func Fixed(dets ...model.Detection) Script {
	return func(model.Frame) []model.Detection {
		return dets
	}
}

type fakeService struct {
	script Script
}

func NewFake(script Script) IService {
	if script == nil {
		script = Fixed()
	}
	return &fakeService{
		script: script,
	}
}

func (svc *fakeService) Score(ctx context.Context, frame model.Frame, params config.ScoreParameters) (model.DetectionResult, error) {
	if err := ctx.Err(); err != nil {
		return model.DetectionResult{}, err
	}
	if frame.Empty() {
		return model.DetectionResult{}, xerrors.Errorf("empty frame %d: %w", frame.Seq, model.ErrDecode)
	}
	return result(frame, svc.script(frame), params), nil
}

func (svc *fakeService) Loaded() bool {
	return true
}

func (svc *fakeService) Labels() []string {
	return []string{"crack"}
}

func (svc *fakeService) Name() string {
	return "fake"
}
