package pipeline

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/khaledhikmat/crackwatch/model"
	"github.com/khaledhikmat/crackwatch/service/archive"
	"github.com/khaledhikmat/crackwatch/service/config"
	"github.com/khaledhikmat/crackwatch/service/data"
	"github.com/khaledhikmat/crackwatch/service/inference"
)

// testSource yields limit frames (forever when limit is 0).
type testSource struct {
	openErr error
	limit   uint64

	seq    uint64
	opens  atomic.Int32
	closes atomic.Int32
}

func (s *testSource) Open() error {
	s.opens.Add(1)
	return s.openErr
}

func (s *testSource) Read() (model.Frame, error) {
	if s.limit > 0 && s.seq >= s.limit {
		return model.Frame{}, model.ErrEndOfStream
	}
	s.seq++
	return model.Frame{Image: image.NewRGBA(image.Rect(0, 0, 64, 48)), Seq: s.seq}, nil
}

func (s *testSource) Close() error {
	s.closes.Add(1)
	return nil
}

func (s *testSource) Name() string {
	return "test"
}

type countingArchive struct {
	archive.IService
	saves atomic.Int32
}

func (a *countingArchive) Save(data []byte) (model.ArchivedImage, error) {
	a.saves.Add(1)
	return a.IService.Save(data)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []model.DetectionEvent
}

func (n *recordingNotifier) Notify(evt model.DetectionEvent, _ []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
	return nil
}

func (n *recordingNotifier) Name() string {
	return "recording"
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

// emptyDetector reports a positive detection but hands back an empty
// annotated frame, which cannot be encoded.
type emptyDetector struct{}

func (emptyDetector) Score(_ context.Context, frame model.Frame, _ config.ScoreParameters) (model.DetectionResult, error) {
	return model.DetectionResult{
		Detections:  []model.Detection{{Label: "crack", Confidence: 0.99}},
		Annotated:   model.Frame{Seq: frame.Seq},
		AnyPositive: true,
	}, nil
}

func (emptyDetector) Loaded() bool     { return true }
func (emptyDetector) Labels() []string { return []string{"crack"} }
func (emptyDetector) Name() string     { return "empty" }

func crackEvery(n uint64) inference.IService {
	return inference.NewFake(func(frame model.Frame) []model.Detection {
		if frame.Seq%n == 0 {
			return []model.Detection{{Label: "crack", Confidence: 0.9, Box: model.Box{X1: 5, Y1: 5, X2: 30, Y2: 30}}}
		}
		// Below the streaming threshold
		return []model.Detection{{Label: "crack", Confidence: 0.6, Box: model.Box{X1: 5, Y1: 5, X2: 30, Y2: 30}}}
	})
}

func newTestServices(t *testing.T, detector inference.IService) (ServicesFactory, *countingArchive, string) {
	dir := t.TempDir()
	t.Setenv("OUTPUT_FOLDER", dir+"/detected")
	t.Setenv("LOG_FOLDER", dir+"/logs")
	t.Setenv("DATA_FOLDER", dir+"/data")
	t.Setenv("SESSION_JOIN_TIMEOUT", "2s")
	t.Setenv("SESSION_START_TIMEOUT", "2s")
	cfgSvc := config.NewEnv()

	archiveSvc, err := archive.NewFiles(cfgSvc)
	require.NoError(t, err)
	dataSvc, err := data.NewFilesDB(cfgSvc.GetDataFolder())
	require.NoError(t, err)

	counting := &countingArchive{IService: archiveSvc}
	return ServicesFactory{
		CfgSvc:       cfgSvc,
		DataSvc:      dataSvc,
		InferenceSvc: detector,
		ArchiveSvc:   counting,
		NotifierSvc:  &recordingNotifier{},
	}, counting, dir + "/detected"
}
