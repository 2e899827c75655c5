package data

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/crackwatch/model"
)

type filesDBService struct {
	folder string

	// Each entity file is rewritten as a whole
	mu sync.Mutex
}

func NewFilesDB(folder string) (IService, error) {
	if err := os.MkdirAll(folder, 0755); err != nil {
		return nil, xerrors.Errorf("creating data folder %s: %w", folder, err)
	}
	return &filesDBService{
		folder: folder,
	}, nil
}

func (svc *filesDBService) NewError(err interface{}) error {
	return newEntity(svc, toErrorRecord(err, time.Now().Unix()), "errors")
}

func (svc *filesDBService) NewSessionStats(stats model.SessionStats) error {
	stats.Timestamp = time.Now().Unix()
	return newEntity(svc, stats, "session-stats")
}

func (svc *filesDBService) NewDetectionEvent(evt model.DetectionEvent) error {
	if evt.Timestamp == 0 {
		evt.Timestamp = time.Now().Unix()
	}
	return newEntity(svc, evt, "detection-events")
}

func (svc *filesDBService) RetrieveSessionStats(limit int) ([]model.SessionStats, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	stats, err := retrieveEntities[model.SessionStats](svc.folder, "session-stats")
	if err != nil {
		return nil, err
	}

	out := []model.SessionStats{}
	for i := len(stats) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, stats[i])
	}
	return out, nil
}

func (svc *filesDBService) Close() error {
	return nil
}

func newEntity[T any](svc *filesDBService, entity T, filename string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	entities, err := retrieveEntities[T](svc.folder, filename)
	if err != nil {
		return err
	}

	entities = append(entities, entity)

	data, err := json.MarshalIndent(entities, "", "  ")
	if err != nil {
		return xerrors.Errorf("marshalling %s: %w", filename, err)
	}

	// Write to a sibling file first so a crash never leaves half a document
	output := filepath.Join(svc.folder, filename+".json")
	tmp := output + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return xerrors.Errorf("writing %s: %w", filename, err)
	}
	if err := os.Rename(tmp, output); err != nil {
		return xerrors.Errorf("replacing %s: %w", filename, err)
	}
	return nil
}

func retrieveEntities[T any](folder, filename string) ([]T, error) {
	entities := []T{}

	data, err := os.ReadFile(filepath.Join(folder, filename+".json"))
	if err != nil {
		// WARNING: File not found, return empty slice
		return entities, nil
	}

	if err := json.Unmarshal(data, &entities); err != nil {
		return nil, xerrors.Errorf("decoding %s: %w", filename, err)
	}
	return entities, nil
}
