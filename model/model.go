package model

import (
	"fmt"
	"image"
	"runtime/debug"
	"time"
)

type CustomError struct {
	Processor  string                 `json:"processor"`
	Inner      error                  `json:"innerError"`
	Message    string                 `json:"message"`
	StackTrace string                 `json:"stackTrace"`
	Misc       map[string]interface{} `json:"misc"`
}

func (e CustomError) Error() string {
	if e.Inner == nil {
		return fmt.Sprintf("%s: %s", e.Processor, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Processor, e.Message, e.Inner)
}

func (e CustomError) Unwrap() error {
	return e.Inner
}

func GenError(proc string, err error, misc map[string]interface{}, messagef string, args ...interface{}) CustomError {
	return CustomError{
		Processor:  proc,
		Inner:      err,
		Message:    fmt.Sprintf(messagef, args...),
		StackTrace: string(debug.Stack()),
		Misc:       misc,
	}
}

// Frame is one captured or uploaded raster. The pipeline stage holding a
// Frame owns it; stages hand frames over, they never share them.
type Frame struct {
	Image      *image.RGBA
	Seq        uint64
	CapturedAt time.Time
}

func (f Frame) Width() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dx()
}

func (f Frame) Height() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dy()
}

func (f Frame) Empty() bool {
	return f.Image == nil || f.Image.Bounds().Empty()
}

// Box is a bounding box in pixel coordinates.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

func (b Box) Rect() image.Rectangle {
	return image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2))
}

// Slice returns the box as [x1, y1, x2, y2].
func (b Box) Slice() []float64 {
	return []float64{b.X1, b.Y1, b.X2, b.Y2}
}

type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

type DetectionResult struct {
	Detections  []Detection
	Annotated   Frame
	AnyPositive bool
}

type ArchivedImage struct {
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

type SessionStats struct {
	ID        string  `json:"id"`
	Source    string  `json:"source"`
	Detector  string  `json:"detector"`
	StartedAt int64   `json:"startedAt"`
	Frames    int     `json:"frames"`
	Positives int     `json:"positives"`
	Archived  int     `json:"archived"`
	Dropped   int     `json:"dropped"`
	Errors    int     `json:"errors"`
	FPS       int     `json:"fps"`
	Uptime    int64   `json:"uptime"`
	AvgProc   float64 `json:"avgProcTime"`
	Reason    string  `json:"reason"`
	Timestamp int64   `json:"timestamp"`
}

type DetectionEvent struct {
	SessionID  string  `json:"sessionId"`
	Filename   string  `json:"filename"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Count      int     `json:"count"`
	Timestamp  int64   `json:"timestamp"`
}
