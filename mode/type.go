package mode

import (
	"context"
	"log/slog"
	"time"

	"github.com/khaledhikmat/crackwatch/model"
	"github.com/khaledhikmat/crackwatch/pipeline"
	"github.com/khaledhikmat/crackwatch/service/data"
	"github.com/khaledhikmat/crackwatch/service/lgr"
)

const streamBufferSize = 100

type Processor func(canxCtx context.Context, svcs pipeline.ServicesFactory) error

func procStats(datasvc data.IService, stats interface{}) {
	switch stats := stats.(type) {
	case model.SessionStats:
		procSessionStats(datasvc, stats)
	default:
		lgr.Logger.Error(
			"unknown stats type",
			slog.Any("stats", stats),
		)
	}
}

func procSessionStats(datasvc data.IService, stats model.SessionStats) {
	err := datasvc.NewSessionStats(stats)
	if err != nil {
		lgr.Logger.Error(
			"failed to store session stats",
			slog.String("session", stats.ID),
			lgr.Err(err),
		)
	}
}

func procError(datasvc data.IService, err interface{}) {
	errTemp := datasvc.NewError(err)
	if errTemp != nil {
		lgr.Logger.Error(
			"failed to store error",
			lgr.Err(errTemp),
		)
	}
}

// drain keeps persisting stats and errors that stragglers report while
// shutting down, for at most period.
func drain(svcs pipeline.ServicesFactory, name string, errorStream, statsStream chan interface{}) {
	period := time.Duration(svcs.CfgSvc.GetModeMaxShutdownTime()) * time.Second

	lgr.Logger.Info(
		name+" is waiting for all go routines to exit",
	)

	timer := time.NewTimer(period)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			lgr.Logger.Info(
				name+" shutdown waiting period expired. Exiting now",
				slog.Duration("period", period),
			)
			return

		case s := <-statsStream:
			procStats(svcs.DataSvc, s)

		case e := <-errorStream:
			procError(svcs.DataSvc, e)
		}
	}
}
