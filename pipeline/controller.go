package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/crackwatch/model"
	"github.com/khaledhikmat/crackwatch/service/lgr"
)

type StartOutcome int

const (
	Started StartOutcome = iota
	AlreadyRunning
)

func (o StartOutcome) String() string {
	if o == AlreadyRunning {
		return "already_running"
	}
	return "started"
}

type StopOutcome int

const (
	Stopped StopOutcome = iota
	NotRunning
)

func (o StopOutcome) String() string {
	if o == NotRunning {
		return "not_running"
	}
	return "stopped"
}

type Status struct {
	State     string `json:"state"`
	SessionID string `json:"sessionId,omitempty"`
	Source    string `json:"source,omitempty"`
	StartedAt int64  `json:"startedAt,omitempty"`
	Frames    int    `json:"frames"`
	Positives int    `json:"positives"`
	Archived  int    `json:"archived"`
	Viewers   int    `json:"viewers"`
}

// Controller allows at most one running session. All transitions happen
// under mu; the session loop itself never takes it.
type Controller struct {
	svcs        ServicesFactory
	newSource   SourceFactory
	errorStream chan interface{}
	statsStream chan interface{}
	alertStream chan AlertData

	mu      sync.Mutex
	current *sessionHandle
}

type sessionHandle struct {
	session *Session
	cancel  context.CancelFunc
}

func (h *sessionHandle) finished() bool {
	select {
	case <-h.session.Done():
		return true
	default:
		return false
	}
}

func NewController(svcs ServicesFactory, newSource SourceFactory, errorStream, statsStream chan interface{}, alertStream chan AlertData) *Controller {
	if newSource == nil {
		newSource = NewFrameSource
	}
	return &Controller{
		svcs:        svcs,
		newSource:   newSource,
		errorStream: errorStream,
		statsStream: statsStream,
		alertStream: alertStream,
	}
}

// Start opens a source and launches a session. It returns once the source
// is open; the session keeps running after ctx is done. Without a loaded
// model no source is opened.
func (c *Controller) Start(ctx context.Context) (StartOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil && !c.current.finished() {
		return AlreadyRunning, nil
	}
	c.current = nil

	if !c.svcs.InferenceSvc.Loaded() {
		return Started, xerrors.Errorf("detector %s is not loaded: %w", c.svcs.InferenceSvc.Name(), model.ErrModelUnavailable)
	}

	source := c.newSource(c.svcs.CfgSvc.GetFramerParameters())
	session := NewSession(c.svcs, source, c.errorStream, c.statsStream, c.alertStream)

	// Detached from the request: the session outlives the start call
	canx, cancel := context.WithCancel(context.Background())
	go session.Run(canx)

	timer := time.NewTimer(c.svcs.CfgSvc.GetSessionStartTimeout())
	defer timer.Stop()

	select {
	case err := <-session.Primed():
		if err != nil {
			cancel()
			<-session.Done()
			return Started, xerrors.Errorf("starting session: %w", err)
		}
	case <-timer.C:
		cancel()
		return Started, xerrors.Errorf("source %s did not open in time: %w", source.Name(), model.ErrDeviceUnavailable)
	case <-ctx.Done():
		cancel()
		return Started, xerrors.Errorf("start abandoned: %w", ctx.Err())
	}

	c.current = &sessionHandle{
		session: session,
		cancel:  cancel,
	}
	lgr.Logger.InfoContext(ctx, "session started", slog.String("session", session.ID))
	return Started, nil
}

// Stop cancels the running session, waits for it within the join timeout
// and releases its source. Stopping an idle controller is not an error.
func (c *Controller) Stop(ctx context.Context) (StopOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := c.current
	if h == nil || h.finished() {
		c.current = nil
		return NotRunning, nil
	}

	h.cancel()

	timer := time.NewTimer(c.svcs.CfgSvc.GetSessionJoinTimeout())
	defer timer.Stop()

	joined := false
	select {
	case <-h.session.Done():
		joined = true
	case <-timer.C:
		lgr.Logger.WarnContext(ctx, "session did not stop in time, releasing source",
			slog.String("session", h.session.ID),
		)
	case <-ctx.Done():
		lgr.Logger.WarnContext(ctx, "stop abandoned, releasing source",
			slog.String("session", h.session.ID),
		)
	}

	release := func() {
		if err := h.session.Release(); err != nil {
			lgr.Logger.WarnContext(ctx, "releasing source", lgr.Err(err))
		}
	}
	if joined {
		release()
	} else {
		// The loop may still hold the source inside Read
		go release()
	}
	c.current = nil
	lgr.Logger.InfoContext(ctx, "session stopped", slog.String("session", h.session.ID))
	return Stopped, nil
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	h := c.current
	c.mu.Unlock()

	if h == nil || h.finished() {
		return Status{State: "idle"}
	}

	stats := h.session.Snapshot()
	return Status{
		State:     "running",
		SessionID: stats.ID,
		Source:    stats.Source,
		StartedAt: stats.StartedAt,
		Frames:    stats.Frames,
		Positives: stats.Positives,
		Archived:  stats.Archived,
		Viewers:   h.session.Viewers(),
	}
}

// Subscribe attaches a viewer to the running session.
func (c *Controller) Subscribe() (*Subscription, error) {
	c.mu.Lock()
	h := c.current
	c.mu.Unlock()

	if h == nil || h.finished() {
		return nil, model.ErrNotRunning
	}
	return h.session.Subscribe()
}
