package mode

import (
	"context"
	"log/slog"
	"time"

	"github.com/khaledhikmat/crackwatch/model"
	"github.com/khaledhikmat/crackwatch/pipeline"
	"github.com/khaledhikmat/crackwatch/service/lgr"
)

var headlessCheckPeriod = 10 * time.Second

// Headless runs a session from boot with no HTTP surface. A session that
// ends on its own is restarted at the next check.
func Headless(canxCtx context.Context, svcs pipeline.ServicesFactory) error {
	errorStream := make(chan interface{}, streamBufferSize)
	statsStream := make(chan interface{}, streamBufferSize)

	alertStream := pipeline.Alerter(canxCtx, svcs, errorStream, statsStream)
	ctrl := pipeline.NewController(svcs, pipeline.NewFrameSource, errorStream, statsStream, alertStream)

	start := func() {
		outcome, err := ctrl.Start(canxCtx)
		if err != nil {
			procError(svcs.DataSvc, model.GenError("headless", err, nil, "error starting session"))
			return
		}
		if outcome == pipeline.Started {
			lgr.Logger.Info("headless session started", slog.String("session", ctrl.Status().SessionID))
		}
	}
	start()

	ticker := time.NewTicker(headlessCheckPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info(
				"headless context cancelled",
			)
			goto resume

		case <-ticker.C:
			status := ctrl.Status()
			if status.State == "idle" {
				start()
				continue
			}
			lgr.Logger.Debug("headless session",
				slog.String("session", status.SessionID),
				slog.Int("frames", status.Frames),
				slog.Int("archived", status.Archived),
			)

		case s := <-statsStream:
			procStats(svcs.DataSvc, s)

		case e := <-errorStream:
			procError(svcs.DataSvc, e)
		}
	}

resume:
	if _, err := ctrl.Stop(context.Background()); err != nil {
		lgr.Logger.Warn("stopping session", lgr.Err(err))
	}

	drain(svcs, "headless", errorStream, statsStream)
	return nil
}
