package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/crackwatch/mode"
	"github.com/khaledhikmat/crackwatch/pipeline"
	"github.com/khaledhikmat/crackwatch/service/archive"
	"github.com/khaledhikmat/crackwatch/service/config"
	"github.com/khaledhikmat/crackwatch/service/data"
	"github.com/khaledhikmat/crackwatch/service/inference"
	"github.com/khaledhikmat/crackwatch/service/lgr"
	"github.com/khaledhikmat/crackwatch/service/notifier"
)

const (
	// WARNING: this has to be bigger that the mode processor shutdown time
	waitOnShutdown = 8 * time.Second
)

var modeProcessors = map[string]mode.Processor{
	"server":   mode.Server,
	"headless": mode.Headless,
}

func main() {
	rootCtx := context.Background()
	canxCtx, canxFn := context.WithCancel(rootCtx)

	// Hook up a signal handler to cancel the context
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		lgr.Logger.Info(
			"received kill signal",
			slog.Any("signal", sig),
		)
		canxFn()
	}()

	// Load env vars if we are in DEV mode
	if os.Getenv("RUN_TIME_ENV") == "dev" || os.Getenv("RUN_TIME_ENV") == "" {
		lgr.Logger.Info("loading env vars from .env file")
		err := godotenv.Load()
		if err != nil {
			lgr.Logger.Warn("no .env file loaded", slog.Any("error", xerrors.New(err.Error())))
		}
	}

	modeType := "server"
	args := os.Args[1:]
	if len(args) > 0 {
		modeType = args[0]
	}

	modeProc, ok := modeProcessors[modeType]
	if !ok {
		lgr.Logger.Error("invalid mode", slog.String("mode", modeType))
		panic("invalid mode")
	}

	// Config service
	cfgSvc := config.NewEnv()

	logCloser, err := lgr.Configure(cfgSvc.GetLogLevel(), cfgSvc.GetLogFolder())
	if err != nil {
		lgr.Logger.Error("error configuring log file", lgr.Err(err))
	} else {
		defer logCloser.Close()
	}

	// Data service
	dataSvc, err := data.New(cfgSvc)
	if err != nil {
		lgr.Logger.Error("error creating data service", lgr.Err(err))
		panic("error creating data service")
	}
	defer dataSvc.Close()

	// Archive service
	archiveSvc, err := archive.NewFiles(cfgSvc)
	if err != nil {
		lgr.Logger.Error("error creating archive service", lgr.Err(err))
		panic("error creating archive service")
	}

	// Inference service. A missing model keeps the process up: sessions
	// and analysis requests report the model as unavailable.
	inferenceSvc, err := inference.New(cfgSvc.GetDetectorParameters())
	if err != nil {
		lgr.Logger.Error("detection model not loaded", lgr.Err(err))
	} else {
		lgr.Logger.Info("detection model loaded",
			slog.String("model", inferenceSvc.Name()),
			slog.Any("classes", inferenceSvc.Labels()),
		)
	}

	// Notifier service
	notifierSvc, err := notifier.New(cfgSvc)
	if err != nil {
		lgr.Logger.Error("error creating notifier, alerts stay local", lgr.Err(err))
		notifierSvc = notifier.NewNoop()
	}

	svcs := pipeline.ServicesFactory{
		CfgSvc:       cfgSvc,
		DataSvc:      dataSvc,
		InferenceSvc: inferenceSvc,
		ArchiveSvc:   archiveSvc,
		NotifierSvc:  notifierSvc,
	}

	// Create mode processor result
	modeProcResult := make(chan error, 1)

	// Start the mode processor
	go func() {
		modeProcResult <- modeProc(canxCtx, svcs)
	}()

	// Wait for cancellation or mode proc
	for {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info(
				"crackwatch context cancelled",
			)
			goto resume

		case err := <-modeProcResult:
			if err != nil {
				lgr.Logger.Info(
					"crackwatch mode processor exited",
					slog.Any("error", xerrors.New(err.Error())),
				)
			}
			goto resume
		}
	}

	// Wait in a non-blocking way for `waitOnShutdown` for the mode processor
	// to stop its session and flush stats and errors
resume:
	// Cancel the context if not already cancelled
	if canxCtx.Err() == nil {
		canxFn()
	}

	lgr.Logger.Info(
		"crackwatch is waiting for the mode processor to exit",
	)

	timer := time.NewTimer(waitOnShutdown)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			lgr.Logger.Info(
				"crackwatch shutdown waiting period expired. Exiting now",
				slog.Duration("period", waitOnShutdown),
			)
			return

		case err := <-modeProcResult:
			if err != nil {
				lgr.Logger.Info(
					"crackwatch mode processor exited",
					slog.Any("error", xerrors.New(err.Error())),
				)
			}
			lgr.Logger.Info("crackwatch mode processor finished. Exiting now")
			return
		}
	}
}
