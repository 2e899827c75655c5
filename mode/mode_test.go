package mode

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaledhikmat/crackwatch/model"
	"github.com/khaledhikmat/crackwatch/pipeline"
	"github.com/khaledhikmat/crackwatch/service/archive"
	"github.com/khaledhikmat/crackwatch/service/config"
	"github.com/khaledhikmat/crackwatch/service/data"
	"github.com/khaledhikmat/crackwatch/service/inference"
	"github.com/khaledhikmat/crackwatch/service/notifier"
)

func newTestServices(t *testing.T) pipeline.ServicesFactory {
	dir := t.TempDir()
	t.Setenv("OUTPUT_FOLDER", filepath.Join(dir, "detected"))
	t.Setenv("LOG_FOLDER", filepath.Join(dir, "logs"))
	t.Setenv("DATA_FOLDER", filepath.Join(dir, "data"))
	t.Setenv("FRAMER_TYPE", "random")
	t.Setenv("CAMERA_WIDTH", "64")
	t.Setenv("CAMERA_HEIGHT", "48")
	t.Setenv("CAMERA_FPS", "30")
	t.Setenv("MODE_MAX_SHUTDOWN_TIME", "1")
	cfgSvc := config.NewEnv()

	archiveSvc, err := archive.NewFiles(cfgSvc)
	require.NoError(t, err)
	dataSvc, err := data.New(cfgSvc)
	require.NoError(t, err)
	t.Cleanup(func() { dataSvc.Close() })

	crack := model.Detection{Label: "crack", Confidence: 0.9, Box: model.Box{X1: 4, Y1: 4, X2: 30, Y2: 20}}
	return pipeline.ServicesFactory{
		CfgSvc:       cfgSvc,
		DataSvc:      dataSvc,
		InferenceSvc: inference.NewFake(inference.Fixed(crack)),
		ArchiveSvc:   archiveSvc,
		NotifierSvc:  notifier.NewNoop(),
	}
}

func TestHeadlessPersistsSessionStatsOnShutdown(t *testing.T) {
	svcs := newTestServices(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- Headless(ctx, svcs) }()

	time.Sleep(300 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("headless did not exit")
	}

	stats, err := svcs.DataSvc.RetrieveSessionStats(0)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "cancelled", stats[0].Reason)
	assert.Equal(t, "random", stats[0].Source)
	assert.Positive(t, stats[0].Frames)

	images, err := svcs.ArchiveSvc.ListRecent()
	require.NoError(t, err)
	assert.NotEmpty(t, images)
}

func TestServerReturnsListenError(t *testing.T) {
	svcs := newTestServices(t)
	t.Setenv("SERVER_ADDRESS", "no-port")

	done := make(chan error, 1)
	go func() { done <- Server(context.Background(), svcs) }()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not exit")
	}
}

func TestServerStopsOnCancel(t *testing.T) {
	svcs := newTestServices(t)
	t.Setenv("SERVER_ADDRESS", "127.0.0.1:0")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- Server(ctx, svcs) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not exit")
	}
}

func TestProcStatsStoresSessionStats(t *testing.T) {
	svcs := newTestServices(t)

	procStats(svcs.DataSvc, model.SessionStats{ID: "s1", Reason: "end of stream"})
	procStats(svcs.DataSvc, "not stats")
	procError(svcs.DataSvc, model.GenError("test", model.ErrDecode, nil, "bad frame"))

	stats, err := svcs.DataSvc.RetrieveSessionStats(10)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "s1", stats[0].ID)
}

func TestHeadlessRestartsFinishedSessions(t *testing.T) {
	svcs := newTestServices(t)
	t.Setenv("FRAMER_LIMIT", "3")

	period := headlessCheckPeriod
	headlessCheckPeriod = 50 * time.Millisecond
	t.Cleanup(func() { headlessCheckPeriod = period })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- Headless(ctx, svcs) }()

	time.Sleep(600 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("headless did not exit")
	}

	stats, err := svcs.DataSvc.RetrieveSessionStats(0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(stats), 2)
	assert.Equal(t, "end of stream", stats[len(stats)-1].Reason)
}
