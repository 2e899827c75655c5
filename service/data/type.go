package data

import (
	"github.com/khaledhikmat/crackwatch/model"
	"github.com/khaledhikmat/crackwatch/service/config"
)

type IService interface {
	NewError(err interface{}) error
	NewSessionStats(stats model.SessionStats) error
	NewDetectionEvent(evt model.DetectionEvent) error

	// RetrieveSessionStats returns up to limit records, newest first.
	RetrieveSessionStats(limit int) ([]model.SessionStats, error)
	Close() error
}

// New picks the store named by cfgsvc.GetDataStore().
func New(cfgsvc config.IService) (IService, error) {
	if cfgsvc.GetDataStore() == "sqlite" {
		return NewSqlite(cfgsvc.GetDataFolder())
	}
	return NewFilesDB(cfgsvc.GetDataFolder())
}

type errorRecord struct {
	Timestamp  int64                  `json:"timestamp"`
	Processor  string                 `json:"processor"`
	Inner      string                 `json:"innerError"`
	Message    string                 `json:"message"`
	StackTrace string                 `json:"stackTrace"`
	Misc       map[string]interface{} `json:"misc"`
}

func toErrorRecord(err interface{}, now int64) errorRecord {
	var customErr model.CustomError
	switch e := err.(type) {
	case model.CustomError:
		customErr = e
	case error:
		customErr.Processor = "N/A"
		customErr.Inner = e
		customErr.Message = e.Error()
		customErr.StackTrace = "N/A"
	default:
		customErr.Processor = "N/A"
		customErr.Message = "unknown error"
		customErr.StackTrace = "N/A"
	}

	inner := ""
	if customErr.Inner != nil {
		inner = customErr.Inner.Error()
	}
	return errorRecord{
		Timestamp:  now,
		Processor:  customErr.Processor,
		Inner:      inner,
		Message:    customErr.Message,
		StackTrace: customErr.StackTrace,
		Misc:       customErr.Misc,
	}
}
