package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/khaledhikmat/crackwatch/model"
	"github.com/khaledhikmat/crackwatch/service/config"
	"github.com/khaledhikmat/crackwatch/service/lgr"
	"github.com/khaledhikmat/crackwatch/vision"
)

type SessionState int32

const (
	SessionPriming SessionState = iota
	SessionLooping
	SessionDraining
	SessionStopped
)

func (s SessionState) String() string {
	switch s {
	case SessionPriming:
		return "priming"
	case SessionLooping:
		return "looping"
	case SessionDraining:
		return "draining"
	default:
		return "stopped"
	}
}

// Session is one run of the capture, detect, archive and publish loop.
// Run executes on a single goroutine; every other method may be called
// concurrently.
type Session struct {
	ID        string
	StartedAt time.Time

	svcs        ServicesFactory
	source      FrameSource
	broadcaster *Broadcaster
	errorStream chan interface{}
	statsStream chan interface{}
	alertStream chan AlertData

	state     atomic.Int32
	frames    atomic.Int64
	positives atomic.Int64
	archived  atomic.Int64
	dropped   atomic.Int64
	errors    atomic.Int64
	procNanos atomic.Int64

	primed chan error
	done   chan struct{}
}

func NewSession(svcs ServicesFactory, source FrameSource, errorStream, statsStream chan interface{}, alertStream chan AlertData) *Session {
	viewer := svcs.CfgSvc.GetViewerParameters()
	return &Session{
		ID:          uuid.NewString(),
		StartedAt:   time.Now(),
		svcs:        svcs,
		source:      guard(source),
		broadcaster: NewBroadcaster(viewer.BufferSize, viewer.MaxMisses),
		errorStream: errorStream,
		statsStream: statsStream,
		alertStream: alertStream,
		primed:      make(chan error, 1),
		done:        make(chan struct{}),
	}
}

// Primed delivers the outcome of opening the source: nil once the loop is
// running, or the open error.
func (s *Session) Primed() <-chan error {
	return s.primed
}

// Done is closed once the session reached SessionStopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *Session) Subscribe() (*Subscription, error) {
	return s.broadcaster.Subscribe()
}

func (s *Session) Viewers() int {
	return s.broadcaster.Viewers()
}

// Release closes the source. It is safe to call while Run is reading.
func (s *Session) Release() error {
	return s.source.Close()
}

func (s *Session) Run(canx context.Context) {
	defer close(s.done)

	if id, err := uuid.Parse(s.ID); err == nil {
		canx = lgr.WithTrace(canx, id)
	}

	s.state.Store(int32(SessionPriming))
	if err := s.source.Open(); err != nil {
		lgr.Logger.ErrorContext(canx, "session priming failed",
			slog.String("source", s.source.Name()),
			lgr.Err(err),
		)
		s.source.Close()
		s.broadcaster.Close()
		s.state.Store(int32(SessionStopped))
		s.primed <- err
		return
	}

	lgr.Logger.InfoContext(canx, "session starting....",
		slog.String("session", s.ID),
		slog.String("source", s.source.Name()),
		slog.String("detector", s.svcs.InferenceSvc.Name()),
	)
	s.state.Store(int32(SessionLooping))
	s.primed <- nil

	reason := s.loop(canx)

	s.state.Store(int32(SessionDraining))
	if err := s.source.Close(); err != nil {
		lgr.Logger.WarnContext(canx, "closing source", lgr.Err(err))
	}
	s.broadcaster.Close()

	stats := s.Snapshot()
	stats.Reason = reason
	trySend(s.statsStream, stats)
	lgr.Logger.InfoContext(canx, "session stopped",
		slog.String("reason", reason),
		slog.Int("frames", stats.Frames),
		slog.Int("archived", stats.Archived),
		slog.Int("dropped", stats.Dropped),
		slog.Int("errors", stats.Errors),
	)
	s.state.Store(int32(SessionStopped))
}

func (s *Session) loop(canx context.Context) string {
	params := s.svcs.CfgSvc.GetStreamParameters()
	quality := s.svcs.CfgSvc.GetJPEGQuality()

	for {
		if canx.Err() != nil {
			return "cancelled"
		}

		frame, err := s.source.Read()
		if err != nil {
			if errors.Is(err, model.ErrDecode) {
				s.fail(canx, "session_read", err, frame.Seq, "undecodable frame")
				continue
			}
			if errors.Is(err, model.ErrEndOfStream) {
				return "end of stream"
			}
			s.fail(canx, "session_read", err, frame.Seq, "read failure")
			return "read failure"
		}

		begin := time.Now()
		if s.process(canx, frame, params, quality) {
			s.procNanos.Add(int64(time.Since(begin)))
			s.frames.Add(1)
		}
	}
}

// process reports whether the frame was scored. Frames that fail scoring
// only show up in the error count.
func (s *Session) process(canx context.Context, frame model.Frame, params config.ScoreParameters, quality int) bool {
	res, err := s.svcs.InferenceSvc.Score(canx, frame, params)
	if err != nil {
		if canx.Err() == nil {
			s.fail(canx, "session_score", err, frame.Seq, "scoring failed")
		}
		return false
	}

	encoded, err := vision.EncodeJPEG(res.Annotated.Image, quality)
	if err != nil {
		s.dropped.Add(1)
		s.fail(canx, "session_encode", err, frame.Seq, "encoding failed")
		return true
	}

	if res.AnyPositive {
		s.positives.Add(1)
		s.archive(canx, frame, res, encoded)
	}

	s.broadcaster.Publish(encoded)
	return true
}

func (s *Session) archive(canx context.Context, frame model.Frame, res model.DetectionResult, encoded []byte) {
	img, err := s.svcs.ArchiveSvc.Save(encoded)
	if err != nil {
		s.fail(canx, "session_archive", err, frame.Seq, "archiving failed")
		return
	}
	s.archived.Add(1)

	lgr.Logger.InfoContext(canx, "crack archived",
		slog.String("file", img.Filename),
		slog.Uint64("seq", frame.Seq),
		slog.Int("detections", len(res.Detections)),
	)

	select {
	case s.alertStream <- AlertData{
		SessionID:  s.ID,
		Image:      img,
		Data:       encoded,
		Detections: res.Detections,
		Timestamp:  frame.CapturedAt,
	}:
	default:
		lgr.Logger.WarnContext(canx, "alertStream full, dropping alert", slog.String("file", img.Filename))
	}
}

func (s *Session) fail(canx context.Context, proc string, err error, seq uint64, msg string) {
	s.errors.Add(1)
	lgr.Logger.WarnContext(canx, msg,
		slog.Uint64("seq", seq),
		lgr.Err(err),
	)
	trySend(s.errorStream, model.GenError(proc, err, map[string]interface{}{
		"session": s.ID,
		"seq":     seq,
	}, msg))
}

func (s *Session) Snapshot() model.SessionStats {
	frames := s.frames.Load()
	uptime := int64(0)
	if !s.StartedAt.IsZero() {
		uptime = int64(time.Since(s.StartedAt).Seconds())
	}

	fps := 0
	if uptime > 0 {
		fps = int(frames / uptime)
	}

	avg := 0.0
	if frames > 0 {
		avg = time.Duration(s.procNanos.Load() / frames).Seconds()
	}

	return model.SessionStats{
		ID:        s.ID,
		Source:    s.source.Name(),
		Detector:  s.svcs.InferenceSvc.Name(),
		StartedAt: s.StartedAt.Unix(),
		Frames:    int(frames),
		Positives: int(s.positives.Load()),
		Archived:  int(s.archived.Load()),
		Dropped:   int(s.dropped.Load()),
		Errors:    int(s.errors.Load()),
		FPS:       fps,
		Uptime:    uptime,
		AvgProc:   avg,
	}
}
