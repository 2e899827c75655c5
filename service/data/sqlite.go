package data

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/crackwatch/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS errors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp INTEGER NOT NULL,
	processor TEXT NOT NULL,
	inner_error TEXT,
	message TEXT,
	stack_trace TEXT,
	misc TEXT
);

CREATE TABLE IF NOT EXISTS session_stats (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	source TEXT,
	detector TEXT,
	started_at INTEGER,
	frames INTEGER DEFAULT 0,
	positives INTEGER DEFAULT 0,
	archived INTEGER DEFAULT 0,
	dropped INTEGER DEFAULT 0,
	errors INTEGER DEFAULT 0,
	fps INTEGER DEFAULT 0,
	uptime INTEGER DEFAULT 0,
	avg_proc_time REAL DEFAULT 0,
	reason TEXT,
	timestamp INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS detection_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT,
	filename TEXT NOT NULL,
	label TEXT,
	confidence REAL,
	count INTEGER,
	timestamp INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_session_stats_timestamp ON session_stats(timestamp);
CREATE INDEX IF NOT EXISTS idx_detection_events_session ON detection_events(session_id);
`

type sqliteService struct {
	db *sql.DB
}

// NewSqlite opens (or creates) crackwatch.db in folder.
func NewSqlite(folder string) (IService, error) {
	if err := os.MkdirAll(folder, 0755); err != nil {
		return nil, xerrors.Errorf("creating data folder %s: %w", folder, err)
	}

	path := filepath.Join(folder, "crackwatch.db")
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, xerrors.Errorf("opening %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, xerrors.Errorf("migrating %s: %w", path, err)
	}

	return &sqliteService{
		db: db,
	}, nil
}

func (svc *sqliteService) NewError(err interface{}) error {
	rec := toErrorRecord(err, time.Now().Unix())

	misc, merr := json.Marshal(rec.Misc)
	if merr != nil {
		misc = []byte("{}")
	}

	_, xerr := svc.db.Exec(`
		INSERT INTO errors (timestamp, processor, inner_error, message, stack_trace, misc)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.Timestamp, rec.Processor, rec.Inner, rec.Message, rec.StackTrace, string(misc))
	if xerr != nil {
		return xerrors.Errorf("inserting error: %w", xerr)
	}
	return nil
}

func (svc *sqliteService) NewSessionStats(stats model.SessionStats) error {
	stats.Timestamp = time.Now().Unix()

	_, err := svc.db.Exec(`
		INSERT INTO session_stats (session_id, source, detector, started_at, frames, positives, archived,
			dropped, errors, fps, uptime, avg_proc_time, reason, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, stats.ID, stats.Source, stats.Detector, stats.StartedAt, stats.Frames, stats.Positives, stats.Archived,
		stats.Dropped, stats.Errors, stats.FPS, stats.Uptime, stats.AvgProc, stats.Reason, stats.Timestamp)
	if err != nil {
		return xerrors.Errorf("inserting session stats %s: %w", stats.ID, err)
	}
	return nil
}

func (svc *sqliteService) NewDetectionEvent(evt model.DetectionEvent) error {
	if evt.Timestamp == 0 {
		evt.Timestamp = time.Now().Unix()
	}

	_, err := svc.db.Exec(`
		INSERT INTO detection_events (session_id, filename, label, confidence, count, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, evt.SessionID, evt.Filename, evt.Label, evt.Confidence, evt.Count, evt.Timestamp)
	if err != nil {
		return xerrors.Errorf("inserting detection event %s: %w", evt.Filename, err)
	}
	return nil
}

func (svc *sqliteService) RetrieveSessionStats(limit int) ([]model.SessionStats, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := svc.db.Query(`
		SELECT session_id, source, detector, started_at, frames, positives, archived,
			dropped, errors, fps, uptime, avg_proc_time, reason, timestamp
		FROM session_stats
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, xerrors.Errorf("querying session stats: %w", err)
	}
	defer rows.Close()

	out := []model.SessionStats{}
	for rows.Next() {
		var s model.SessionStats
		if err := rows.Scan(&s.ID, &s.Source, &s.Detector, &s.StartedAt, &s.Frames, &s.Positives, &s.Archived,
			&s.Dropped, &s.Errors, &s.FPS, &s.Uptime, &s.AvgProc, &s.Reason, &s.Timestamp); err != nil {
			return nil, xerrors.Errorf("scanning session stats: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Errorf("iterating session stats: %w", err)
	}
	return out, nil
}

func (svc *sqliteService) Close() error {
	return svc.db.Close()
}
