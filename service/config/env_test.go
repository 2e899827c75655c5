package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvFallsBackToDefaults(t *testing.T) {
	svc := NewEnv()
	defaults := NewHardCoded()

	assert.Equal(t, defaults.GetOutputFolder(), svc.GetOutputFolder())
	assert.Equal(t, 0.72, svc.GetStreamParameters().ConfidenceThreshold)
	assert.Equal(t, []string{"crack"}, svc.GetStreamParameters().Classes)
	assert.Equal(t, 0.5, svc.GetAnalysisParameters().ConfidenceThreshold)
	assert.Empty(t, svc.GetAnalysisParameters().Classes)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OUTPUT_FOLDER", "/tmp/cracks")
	t.Setenv("STREAM_CONFIDENCE_THRESHOLD", "0.8")
	t.Setenv("STREAM_CLASSES", "crack, spall")
	t.Setenv("FRAMER_TYPE", "random")
	t.Setenv("CAMERA_FPS", "30")
	t.Setenv("SESSION_JOIN_TIMEOUT", "750ms")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")

	svc := NewEnv()

	assert.Equal(t, "/tmp/cracks", svc.GetOutputFolder())
	assert.Equal(t, 0.8, svc.GetStreamParameters().ConfidenceThreshold)
	assert.Equal(t, []string{"crack", "spall"}, svc.GetStreamParameters().Classes)

	framer := svc.GetFramerParameters()
	assert.Equal(t, "random", framer.Type)
	assert.Equal(t, 30, framer.FPS)
	assert.Equal(t, 640, framer.Width)

	assert.Equal(t, 750*time.Millisecond, svc.GetSessionJoinTimeout())
	assert.Equal(t, int64(-100123), svc.GetTelegramChatID())
}

func TestEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("JPEG_QUALITY", "high")
	t.Setenv("ANALYSIS_CLASSES", "*")

	svc := NewEnv()
	require.Equal(t, 85, svc.GetJPEGQuality())
	require.Nil(t, svc.GetAnalysisParameters().Classes)
}
