package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type envService struct {
	defaults IService
}

// NewEnv reads the configuration from environment variables and falls back
// to the hardcoded defaults for anything unset or unparsable.
func NewEnv() IService {
	return &envService{
		defaults: NewHardCoded(),
	}
}

func (svc *envService) GetModeMaxShutdownTime() int {
	return getEnvAsInt("MODE_MAX_SHUTDOWN_TIME", svc.defaults.GetModeMaxShutdownTime())
}

func (svc *envService) GetServerAddress() string {
	return getEnv("SERVER_ADDRESS", svc.defaults.GetServerAddress())
}

func (svc *envService) GetOutputFolder() string {
	return getEnv("OUTPUT_FOLDER", svc.defaults.GetOutputFolder())
}

func (svc *envService) GetLogFolder() string {
	return getEnv("LOG_FOLDER", svc.defaults.GetLogFolder())
}

func (svc *envService) GetLogLevel() string {
	return getEnv("LOG_LEVEL", svc.defaults.GetLogLevel())
}

func (svc *envService) GetDataStore() string {
	return getEnv("DATA_STORE", svc.defaults.GetDataStore())
}

func (svc *envService) GetDataFolder() string {
	return getEnv("DATA_FOLDER", svc.defaults.GetDataFolder())
}

func (svc *envService) GetJPEGQuality() int {
	return getEnvAsInt("JPEG_QUALITY", svc.defaults.GetJPEGQuality())
}

func (svc *envService) GetMaxUploadPixels() int {
	return getEnvAsInt("MAX_UPLOAD_PIXELS", svc.defaults.GetMaxUploadPixels())
}

func (svc *envService) GetSessionJoinTimeout() time.Duration {
	return getEnvAsDuration("SESSION_JOIN_TIMEOUT", svc.defaults.GetSessionJoinTimeout())
}

func (svc *envService) GetSessionStartTimeout() time.Duration {
	return getEnvAsDuration("SESSION_START_TIMEOUT", svc.defaults.GetSessionStartTimeout())
}

func (svc *envService) GetAlerterBufferSize() int {
	return getEnvAsInt("ALERTER_BUFFER_SIZE", svc.defaults.GetAlerterBufferSize())
}

func (svc *envService) GetTelegramToken() string {
	return getEnv("TELEGRAM_TOKEN", svc.defaults.GetTelegramToken())
}

func (svc *envService) GetTelegramChatID() int64 {
	if value := os.Getenv("TELEGRAM_CHAT_ID"); value != "" {
		if id, err := strconv.ParseInt(value, 10, 64); err == nil {
			return id
		}
	}
	return svc.defaults.GetTelegramChatID()
}

func (svc *envService) GetFramerParameters() FramerParameters {
	p := svc.defaults.GetFramerParameters()
	p.Type = getEnv("FRAMER_TYPE", p.Type)
	p.Device = getEnv("CAMERA_DEVICE", p.Device)
	p.Width = getEnvAsInt("CAMERA_WIDTH", p.Width)
	p.Height = getEnvAsInt("CAMERA_HEIGHT", p.Height)
	p.FPS = getEnvAsInt("CAMERA_FPS", p.FPS)
	p.Limit = getEnvAsInt("FRAMER_LIMIT", p.Limit)
	return p
}

func (svc *envService) GetDetectorParameters() DetectorParameters {
	p := svc.defaults.GetDetectorParameters()
	p.Type = getEnv("DETECTOR_TYPE", p.Type)
	p.ModelPath = getEnv("MODEL_PATH", p.ModelPath)
	p.LabelsPath = getEnv("LABELS_PATH", p.LabelsPath)
	p.InputSize = getEnvAsInt("MODEL_INPUT_SIZE", p.InputSize)
	p.ObjectConfidenceThreshold = float32(getEnvAsFloat("MODEL_OBJECT_THRESHOLD", float64(p.ObjectConfidenceThreshold)))
	p.NMSThreshold = float32(getEnvAsFloat("MODEL_NMS_THRESHOLD", float64(p.NMSThreshold)))
	return p
}

func (svc *envService) GetStreamParameters() ScoreParameters {
	p := svc.defaults.GetStreamParameters()
	p.ConfidenceThreshold = getEnvAsFloat("STREAM_CONFIDENCE_THRESHOLD", p.ConfidenceThreshold)
	p.Classes = getEnvAsList("STREAM_CLASSES", p.Classes)
	p.Targets = getEnvAsList("TARGET_CLASSES", p.Targets)
	return p
}

func (svc *envService) GetAnalysisParameters() ScoreParameters {
	p := svc.defaults.GetAnalysisParameters()
	p.ConfidenceThreshold = getEnvAsFloat("ANALYSIS_CONFIDENCE_THRESHOLD", p.ConfidenceThreshold)
	p.Classes = getEnvAsList("ANALYSIS_CLASSES", p.Classes)
	p.Targets = getEnvAsList("TARGET_CLASSES", p.Targets)
	return p
}

func (svc *envService) GetViewerParameters() ViewerParameters {
	p := svc.defaults.GetViewerParameters()
	p.BufferSize = getEnvAsInt("VIEWER_BUFFER_SIZE", p.BufferSize)
	p.MaxMisses = getEnvAsInt("VIEWER_MAX_MISSES", p.MaxMisses)
	return p
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated list. "*" clears the list.
func getEnvAsList(key string, defaultValue []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return defaultValue
	}
	if strings.TrimSpace(value) == "*" {
		return nil
	}

	out := []string{}
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
