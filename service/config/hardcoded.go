package config

import (
	"time"
)

type hardcodedService struct {
}

// NewHardCoded returns the built-in defaults. NewEnv overlays the
// environment on top of them.
func NewHardCoded() IService {
	return &hardcodedService{}
}

func (svc *hardcodedService) GetModeMaxShutdownTime() int {
	return 5
}

func (svc *hardcodedService) GetServerAddress() string {
	return "0.0.0.0:5000"
}

func (svc *hardcodedService) GetOutputFolder() string {
	return "./detected_cracks"
}

func (svc *hardcodedService) GetLogFolder() string {
	return "./logs"
}

func (svc *hardcodedService) GetLogLevel() string {
	return "info"
}

func (svc *hardcodedService) GetDataStore() string {
	return "files"
}

func (svc *hardcodedService) GetDataFolder() string {
	return "./settings"
}

func (svc *hardcodedService) GetJPEGQuality() int {
	return 85
}

func (svc *hardcodedService) GetMaxUploadPixels() int {
	return 40_000_000
}

func (svc *hardcodedService) GetSessionJoinTimeout() time.Duration {
	// Must exceed one frame's capture + inference + encode time
	return 5 * time.Second
}

func (svc *hardcodedService) GetSessionStartTimeout() time.Duration {
	return 10 * time.Second
}

func (svc *hardcodedService) GetAlerterBufferSize() int {
	return 100
}

func (svc *hardcodedService) GetTelegramToken() string {
	return ""
}

func (svc *hardcodedService) GetTelegramChatID() int64 {
	return 0
}

func (svc *hardcodedService) GetFramerParameters() FramerParameters {
	return FramerParameters{
		Type:   "device",
		Device: "0",
		Width:  640,
		Height: 480,
		FPS:    15,
		Limit:  0,
	}
}

func (svc *hardcodedService) GetDetectorParameters() DetectorParameters {
	return DetectorParameters{
		Type:                      "yolo",
		ModelPath:                 "./model/crack.onnx",
		LabelsPath:                "./model/crack.names",
		InputSize:                 640,
		ObjectConfidenceThreshold: 0.25,
		NMSThreshold:              0.45,
	}
}

func (svc *hardcodedService) GetStreamParameters() ScoreParameters {
	return ScoreParameters{
		ConfidenceThreshold: 0.72,
		Classes:             []string{"crack"},
		Targets:             []string{"crack"},
	}
}

func (svc *hardcodedService) GetAnalysisParameters() ScoreParameters {
	return ScoreParameters{
		ConfidenceThreshold: 0.5,
		Classes:             nil,
		Targets:             []string{"crack"},
	}
}

func (svc *hardcodedService) GetViewerParameters() ViewerParameters {
	return ViewerParameters{
		BufferSize: 2,
		MaxMisses:  30,
	}
}
