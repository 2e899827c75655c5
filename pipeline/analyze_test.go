package pipeline

import (
	"context"
	"errors"
	"image"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaledhikmat/crackwatch/model"
	"github.com/khaledhikmat/crackwatch/service/inference"
	"github.com/khaledhikmat/crackwatch/vision"
)

func upload(t *testing.T) []byte {
	data, err := vision.EncodeJPEG(image.NewRGBA(image.Rect(0, 0, 120, 90)), 90)
	require.NoError(t, err)
	return data
}

func TestAnalyzeWithoutDetectionsWritesNothing(t *testing.T) {
	svcs, _, dir := newTestServices(t, inference.NewFake(nil))

	out, err := Analyze(context.Background(), svcs, upload(t), true)
	require.NoError(t, err)
	assert.False(t, out.Positive)
	assert.Empty(t, out.Detections)
	assert.Nil(t, out.Saved)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAnalyzeSavesCrack(t *testing.T) {
	svcs, _, _ := newTestServices(t, inference.NewFake(inference.Fixed(
		model.Detection{Label: "crack", Confidence: 0.55, Box: model.Box{X1: 10, Y1: 10, X2: 60, Y2: 60}},
		model.Detection{Label: "stain", Confidence: 0.8},
	)))

	out, err := Analyze(context.Background(), svcs, upload(t), true)
	require.NoError(t, err)
	assert.True(t, out.Positive)
	assert.Len(t, out.Detections, 2)
	require.NotNil(t, out.Saved)
	assert.Contains(t, out.Saved.Filename, "crack_detection_")

	img, err := vision.Decode(out.Image, 0)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 120, 90), img.Bounds())

	// The image variant never archives
	out, err = Analyze(context.Background(), svcs, upload(t), false)
	require.NoError(t, err)
	assert.Nil(t, out.Saved)
}

func TestAnalyzeErrors(t *testing.T) {
	svcs, _, _ := newTestServices(t, inference.NewFake(nil))

	_, err := Analyze(context.Background(), svcs, []byte("nope"), true)
	assert.True(t, errors.Is(err, model.ErrDecode))

	svcs.InferenceSvc = inference.NewUnavailable(nil)
	_, err = Analyze(context.Background(), svcs, upload(t), true)
	assert.True(t, errors.Is(err, model.ErrModelUnavailable))
}
