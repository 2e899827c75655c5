package inference

import (
	"context"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/crackwatch/model"
	"github.com/khaledhikmat/crackwatch/service/config"
)

type unavailableService struct {
	cause error
}

// NewUnavailable stands in for a detector whose model failed to load.
func NewUnavailable(cause error) IService {
	return &unavailableService{
		cause: cause,
	}
}

func (svc *unavailableService) Score(_ context.Context, _ model.Frame, _ config.ScoreParameters) (model.DetectionResult, error) {
	if svc.cause != nil {
		return model.DetectionResult{}, xerrors.Errorf("%v: %w", svc.cause, model.ErrModelUnavailable)
	}
	return model.DetectionResult{}, model.ErrModelUnavailable
}

func (svc *unavailableService) Loaded() bool {
	return false
}

func (svc *unavailableService) Labels() []string {
	return nil
}

func (svc *unavailableService) Name() string {
	return "unavailable"
}
