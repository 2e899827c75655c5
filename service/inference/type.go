package inference

import (
	"context"

	"github.com/khaledhikmat/crackwatch/model"
	"github.com/khaledhikmat/crackwatch/service/config"
	"github.com/khaledhikmat/crackwatch/vision"
)

// IService scores a single frame. Implementations never mutate the frame
// they are given; the annotated frame in the result is always a new raster.
type IService interface {
	Score(ctx context.Context, frame model.Frame, params config.ScoreParameters) (model.DetectionResult, error)
	Loaded() bool
	Labels() []string
	Name() string
}

// New builds the detector named by params.Type. A detector that cannot be
// loaded degrades to one that reports itself unavailable.
func New(params config.DetectorParameters) (IService, error) {
	switch params.Type {
	case "fake":
		return NewFake(Periodic(10, model.Detection{
			Label:      "crack",
			Confidence: 0.9,
			Box:        model.Box{X1: 40, Y1: 40, X2: 200, Y2: 160},
		})), nil
	default:
		svc, err := NewYolo(params)
		if err != nil {
			return NewUnavailable(err), err
		}
		return svc, nil
	}
}

func result(frame model.Frame, raw []model.Detection, params config.ScoreParameters) model.DetectionResult {
	dets, positive := vision.Filter(raw, params.ConfidenceThreshold, params.Classes, params.Targets)
	return model.DetectionResult{
		Detections: dets,
		Annotated: model.Frame{
			Image:      vision.Annotate(frame.Image, dets),
			Seq:        frame.Seq,
			CapturedAt: frame.CapturedAt,
		},
		AnyPositive: positive,
	}
}
