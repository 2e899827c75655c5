package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/natefinch/lumberjack"

	"github.com/khaledhikmat/crackwatch/model"
	"github.com/khaledhikmat/crackwatch/service/lgr"
	"github.com/khaledhikmat/crackwatch/vision"
)

// Alerter consumes alerts for archived frames: it appends them to the
// detection log, records a detection event and notifies. The returned
// channel is never closed; senders must not block on it.
func Alerter(canx context.Context, svcs ServicesFactory, errorStream chan interface{}, _ chan interface{}) chan AlertData {
	in := make(chan AlertData, svcs.CfgSvc.GetAlerterBufferSize())

	detectionLog := &lumberjack.Logger{
		Filename:   filepath.Join(svcs.CfgSvc.GetLogFolder(), "detections.log"),
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     7,    // days
		Compress:   true, // compress old logs
	}

	go func() {
		defer detectionLog.Close()

		alerts := 0
		for {
			select {
			case <-canx.Done():
				lgr.Logger.Info("alerter context cancelled", slog.Int("alerts", alerts))
				return

			case alert := <-in:
				alerts++
				evt := handleAlert(svcs, detectionLog, alert, errorStream)
				lgr.Logger.Info("alert processed",
					slog.String("file", evt.Filename),
					slog.String("label", evt.Label),
					slog.Float64("confidence", evt.Confidence),
					slog.String("notifier", svcs.NotifierSvc.Name()),
				)
			}
		}
	}()

	return in
}

func handleAlert(svcs ServicesFactory, detectionLog io.Writer, alert AlertData, errorStream chan interface{}) model.DetectionEvent {
	evt := model.DetectionEvent{
		SessionID: alert.SessionID,
		Filename:  alert.Image.Filename,
		Count:     len(alert.Detections),
		Timestamp: alert.Timestamp.Unix(),
	}
	if best, ok := vision.Best(alert.Detections); ok {
		evt.Label = best.Label
		evt.Confidence = best.Confidence
	}

	if err := logDetection(detectionLog, evt, alert.Detections); err != nil {
		trySend(errorStream, model.GenError("alerter_log", err, nil, "error writing detection log"))
	}

	if err := svcs.DataSvc.NewDetectionEvent(evt); err != nil {
		trySend(errorStream, model.GenError("alerter_data", err, nil, "error recording detection event"))
	}

	if err := svcs.NotifierSvc.Notify(evt, alert.Data); err != nil {
		trySend(errorStream, model.GenError("alerter_notify", err, map[string]interface{}{
			"file": evt.Filename,
		}, "error notifying"))
	}
	return evt
}

func logDetection(w io.Writer, evt model.DetectionEvent, detections []model.Detection) error {
	entry := map[string]interface{}{
		"time":       time.Unix(evt.Timestamp, 0).Format(time.RFC3339),
		"session":    evt.SessionID,
		"file":       evt.Filename,
		"detections": detections,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
