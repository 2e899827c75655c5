//go:build gocv

package inference

import (
	"context"
	"image"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gocv.io/x/gocv"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/crackwatch/model"
	"github.com/khaledhikmat/crackwatch/service/config"
	"github.com/khaledhikmat/crackwatch/service/lgr"
)

type yoloService struct {
	params config.DetectorParameters
	labels []string

	// gocv.Net is not safe for concurrent use
	mu  sync.Mutex
	net gocv.Net
}

// NewYolo loads an ONNX network with the YOLOv5 output layout:
// one row per candidate, [cx, cy, w, h, objectness, class scores...].
func NewYolo(params config.DetectorParameters) (IService, error) {
	if _, err := os.Stat(params.ModelPath); err != nil {
		return nil, xerrors.Errorf("model %s: %v: %w", params.ModelPath, err, model.ErrModelUnavailable)
	}

	labels, err := loadLabels(params.LabelsPath)
	if err != nil {
		return nil, xerrors.Errorf("labels %s: %v: %w", params.LabelsPath, err, model.ErrModelUnavailable)
	}

	net := gocv.ReadNet(params.ModelPath, "")
	if net.Empty() {
		return nil, xerrors.Errorf("reading %s: %w", params.ModelPath, model.ErrModelUnavailable)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, xerrors.Errorf("setting backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, xerrors.Errorf("setting target: %w", err)
	}

	if params.InputSize <= 0 {
		params.InputSize = 640
	}

	lgr.Logger.Info("yolo detector loaded",
		slog.String("model", params.ModelPath),
		slog.Int("labels", len(labels)),
		slog.String("openCV", gocv.Version()),
	)

	return &yoloService{
		params: params,
		labels: labels,
		net:    net,
	}, nil
}

func (svc *yoloService) Score(ctx context.Context, frame model.Frame, params config.ScoreParameters) (model.DetectionResult, error) {
	if err := ctx.Err(); err != nil {
		return model.DetectionResult{}, err
	}
	if frame.Empty() {
		return model.DetectionResult{}, xerrors.Errorf("empty frame %d: %w", frame.Seq, model.ErrDecode)
	}

	mat, err := gocv.ImageToMatRGB(frame.Image)
	if err != nil {
		return model.DetectionResult{}, xerrors.Errorf("converting frame %d: %w", frame.Seq, err)
	}
	defer mat.Close()

	raw, err := svc.forward(mat)
	if err != nil {
		return model.DetectionResult{}, err
	}
	return result(frame, raw, params), nil
}

func (svc *yoloService) forward(mat gocv.Mat) ([]model.Detection, error) {
	size := svc.params.InputSize
	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	svc.mu.Lock()
	svc.net.SetInput(blob, "")
	output := svc.net.Forward("")
	svc.mu.Unlock()
	defer output.Close()

	dims := output.Size()
	if len(dims) != 3 || dims[2] < 6 {
		return nil, xerrors.Errorf("unexpected network output dims %v", dims)
	}

	rows := output.Reshape(1, dims[1])
	defer rows.Close()

	xScale := float32(mat.Cols()) / float32(size)
	yScale := float32(mat.Rows()) / float32(size)

	var (
		boxes  []image.Rectangle
		scores []float32
		labels []string
	)
	for i := 0; i < rows.Rows(); i++ {
		row := rows.RowRange(i, i+1)
		data, err := row.DataPtrFloat32()
		if err != nil || len(data) < 6 {
			row.Close()
			continue
		}

		objectness := data[4]
		if objectness < svc.params.ObjectConfidenceThreshold {
			row.Close()
			continue
		}

		classID, classScore := -1, float32(0)
		for j, s := range data[5:] {
			if s > classScore {
				classID, classScore = j, s
			}
		}
		confidence := objectness * classScore
		if classID < 0 || classID >= len(svc.labels) || confidence < svc.params.ObjectConfidenceThreshold {
			row.Close()
			continue
		}

		cx, cy := data[0]*xScale, data[1]*yScale
		w, h := data[2]*xScale, data[3]*yScale
		boxes = append(boxes, image.Rect(int(cx-w/2), int(cy-h/2), int(cx+w/2), int(cy+h/2)))
		scores = append(scores, confidence)
		labels = append(labels, svc.labels[classID])
		row.Close()
	}

	if len(boxes) == 0 {
		return nil, nil
	}

	keep := gocv.NMSBoxes(boxes, scores, svc.params.ObjectConfidenceThreshold, svc.params.NMSThreshold)
	dets := make([]model.Detection, 0, len(keep))
	for _, idx := range keep {
		r := boxes[idx]
		dets = append(dets, model.Detection{
			Label:      labels[idx],
			Confidence: float64(scores[idx]),
			Box: model.Box{
				X1: float64(r.Min.X),
				Y1: float64(r.Min.Y),
				X2: float64(r.Max.X),
				Y2: float64(r.Max.Y),
			},
		})
	}
	return dets, nil
}

func (svc *yoloService) Loaded() bool {
	return true
}

func (svc *yoloService) Labels() []string {
	return svc.labels
}

func (svc *yoloService) Name() string {
	return "yolo"
}

func loadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	labels := []string{}
	for _, l := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			labels = append(labels, l)
		}
	}
	if len(labels) == 0 {
		return nil, xerrors.New("no labels")
	}
	return labels, nil
}
