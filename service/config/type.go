package config

import "time"

type DetectorParameters struct {
	Type                      string // yolo | fake
	ModelPath                 string
	LabelsPath                string
	InputSize                 int
	ObjectConfidenceThreshold float32
	NMSThreshold              float32
}

// ScoreParameters describe what counts as a detection at one call site.
type ScoreParameters struct {
	ConfidenceThreshold float64
	Classes             []string // empty means every label the model knows
	Targets             []string // labels that make a result positive
}

type FramerParameters struct {
	Type   string // device | random
	Device string // camera index, RTSP URL or video file
	Width  int
	Height int
	FPS    int
	Limit  int // random framer only; 0 means unbounded
}

type ViewerParameters struct {
	BufferSize int
	MaxMisses  int
}

type IService interface {
	GetModeMaxShutdownTime() int
	GetServerAddress() string
	GetOutputFolder() string
	GetLogFolder() string
	GetLogLevel() string
	GetDataStore() string
	GetDataFolder() string
	GetJPEGQuality() int
	GetMaxUploadPixels() int
	GetSessionJoinTimeout() time.Duration
	GetSessionStartTimeout() time.Duration
	GetAlerterBufferSize() int
	GetTelegramToken() string
	GetTelegramChatID() int64
	GetFramerParameters() FramerParameters
	GetDetectorParameters() DetectorParameters
	GetStreamParameters() ScoreParameters
	GetAnalysisParameters() ScoreParameters
	GetViewerParameters() ViewerParameters
}
