package pipeline

import (
	"context"
	"time"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/crackwatch/model"
	"github.com/khaledhikmat/crackwatch/vision"
)

type Analysis struct {
	Detections []model.Detection
	Positive   bool
	// Annotated JPEG
	Image     []byte
	Saved     *model.ArchivedImage
	Timestamp time.Time
}

// Analyze scores one uploaded image with the analysis parameters. When save
// is set and a crack was found, the annotated image is archived.
func Analyze(ctx context.Context, svcs ServicesFactory, upload []byte, save bool) (Analysis, error) {
	if !svcs.InferenceSvc.Loaded() {
		return Analysis{}, model.ErrModelUnavailable
	}

	img, err := vision.Decode(upload, svcs.CfgSvc.GetMaxUploadPixels())
	if err != nil {
		return Analysis{}, err
	}

	now := time.Now()
	res, err := svcs.InferenceSvc.Score(ctx, model.Frame{Image: img, CapturedAt: now}, svcs.CfgSvc.GetAnalysisParameters())
	if err != nil {
		return Analysis{}, xerrors.Errorf("scoring upload: %w", err)
	}

	encoded, err := vision.EncodeJPEG(res.Annotated.Image, svcs.CfgSvc.GetJPEGQuality())
	if err != nil {
		return Analysis{}, xerrors.Errorf("encoding annotated upload: %w", err)
	}

	out := Analysis{
		Detections: res.Detections,
		Positive:   res.AnyPositive,
		Image:      encoded,
		Timestamp:  now,
	}

	if save && res.AnyPositive {
		saved, err := svcs.ArchiveSvc.SaveUpload(encoded)
		if err != nil {
			return Analysis{}, err
		}
		out.Saved = &saved
	}
	return out, nil
}
