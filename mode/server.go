package mode

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/khaledhikmat/crackwatch/api"
	"github.com/khaledhikmat/crackwatch/pipeline"
	"github.com/khaledhikmat/crackwatch/service/lgr"
)

// Server exposes the session controller and the single-image analysis
// endpoints over HTTP. Sessions start and stop on request.
func Server(canxCtx context.Context, svcs pipeline.ServicesFactory) error {
	errorStream := make(chan interface{}, streamBufferSize)
	statsStream := make(chan interface{}, streamBufferSize)

	alertStream := pipeline.Alerter(canxCtx, svcs, errorStream, statsStream)
	ctrl := pipeline.NewController(svcs, pipeline.NewFrameSource, errorStream, statsStream, alertStream)

	if lgr.ParseLevel(svcs.CfgSvc.GetLogLevel()) != slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &http.Server{
		Addr:              svcs.CfgSvc.GetServerAddress(),
		Handler:           api.NewRouter(ctrl, svcs),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		lgr.Logger.Info("http server listening", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var result error
	for {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info(
				"server context cancelled",
			)
			goto resume

		case err := <-serverErr:
			result = err
			goto resume

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

	// MJPEG viewers ended with the session; Shutdown only waits for short requests
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(svcs.CfgSvc.GetModeMaxShutdownTime())*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		lgr.Logger.Warn("http server shutdown", lgr.Err(err))
	}

	drain(svcs, "server", errorStream, statsStream)
	return result
}
