//go:build !gocv

package inference

import (
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/crackwatch/model"
	"github.com/khaledhikmat/crackwatch/service/config"
)

func NewYolo(params config.DetectorParameters) (IService, error) {
	return nil, xerrors.Errorf("yolo detector %s needs a gocv build: %w", params.ModelPath, model.ErrModelUnavailable)
}
