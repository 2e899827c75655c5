package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/crackwatch/model"
	"github.com/khaledhikmat/crackwatch/pipeline"
	"github.com/khaledhikmat/crackwatch/service/lgr"
)

// Uploads larger than this are rejected before decoding.
const maxUploadBytes = 32 << 20

type detectionResponse struct {
	Class      string    `json:"class"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox"`
	Timestamp  string    `json:"timestamp"`
}

type analysisResponse struct {
	CrackDetected   bool                `json:"crack_detected"`
	Detections      []detectionResponse `json:"detections"`
	TotalDetections int                 `json:"total_detections"`
	Timestamp       string              `json:"timestamp"`
	SavedFilename   string              `json:"saved_filename,omitempty"`
}

func (h *Handler) DetectCracks(c *gin.Context) {
	out, ok := h.analyze(c, true)
	if !ok {
		return
	}

	ts := out.Timestamp.Format(time.RFC3339Nano)
	resp := analysisResponse{
		CrackDetected:   out.Positive,
		Detections:      make([]detectionResponse, 0, len(out.Detections)),
		TotalDetections: len(out.Detections),
		Timestamp:       ts,
	}
	for _, d := range out.Detections {
		resp.Detections = append(resp.Detections, detectionResponse{
			Class:      d.Label,
			Confidence: d.Confidence,
			BBox:       d.Box.Slice(),
			Timestamp:  ts,
		})
	}
	if out.Saved != nil {
		resp.SavedFilename = out.Saved.Filename
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) DetectCracksWithImage(c *gin.Context) {
	out, ok := h.analyze(c, false)
	if !ok {
		return
	}

	c.Header("X-Crack-Detected", strconv.FormatBool(out.Positive))
	c.Header("X-Total-Detections", strconv.Itoa(len(out.Detections)))
	c.Data(http.StatusOK, "image/jpeg", out.Image)
}

func (h *Handler) analyze(c *gin.Context, save bool) (pipeline.Analysis, bool) {
	if !h.svcs.InferenceSvc.Loaded() {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Model not loaded"})
		return pipeline.Analysis{}, false
	}

	upload, err := readUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return pipeline.Analysis{}, false
	}

	out, err := pipeline.Analyze(c.Request.Context(), h.svcs, upload, save)
	if err != nil {
		status := statusFor(err)
		detail := "Processing error: " + err.Error()
		switch {
		case errors.Is(err, model.ErrDecode):
			detail = "Invalid image format"
		case errors.Is(err, model.ErrModelUnavailable):
			detail = "Model not loaded"
		}
		if status >= http.StatusInternalServerError {
			lgr.Logger.ErrorContext(c.Request.Context(), "analysis failed", lgr.Err(err))
		}
		c.JSON(status, gin.H{"detail": detail})
		return pipeline.Analysis{}, false
	}
	return out, true
}

func readUpload(c *gin.Context) ([]byte, error) {
	header, err := c.FormFile("file")
	if err != nil {
		return nil, xerrors.Errorf("missing file field: %w", err)
	}
	if header.Size > maxUploadBytes {
		return nil, xerrors.Errorf("upload of %d bytes exceeds %d", header.Size, maxUploadBytes)
	}

	file, err := header.Open()
	if err != nil {
		return nil, xerrors.Errorf("opening upload: %w", err)
	}
	defer file.Close()

	return io.ReadAll(io.LimitReader(file, maxUploadBytes))
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"model_loaded": h.svcs.InferenceSvc.Loaded(),
		"timestamp":    time.Now().Format(time.RFC3339Nano),
	})
}

func (h *Handler) ModelInfo(c *gin.Context) {
	if !h.svcs.InferenceSvc.Loaded() {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Model not loaded"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"classes":              h.svcs.InferenceSvc.Labels(),
		"confidence_threshold": h.svcs.CfgSvc.GetAnalysisParameters().ConfidenceThreshold,
		"stream_threshold":     h.svcs.CfgSvc.GetStreamParameters().ConfidenceThreshold,
		"model_type":           h.svcs.InferenceSvc.Name(),
	})
}
