package progress

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/studyhall/backend/internal/models"
)

// LocalStore is the SQLite progress backend for anonymous devices.
// Records are keyed by the caller-supplied device ID and never merged
// into a user account.
type LocalStore struct {
	db *sql.DB
}

// OpenLocalStore opens (or creates) the device progress database and
// ensures the schema exists.
func OpenLocalStore(path string) (*LocalStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open local progress db: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS question_progress (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id TEXT NOT NULL,
		question_id INTEGER NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		last_selected_key TEXT,
		last_correct INTEGER,
		flagged INTEGER NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		time_spent_sec INTEGER NOT NULL DEFAULT 0,
		last_action_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(device_id, question_id)
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init local progress schema: %w", err)
	}
	return &LocalStore{db: db}, nil
}

func (s *LocalStore) Close() error {
	return s.db.Close()
}

func (s *LocalStore) GetOrCreate(deviceID string, questionID int64) (*models.QuestionProgress, error) {
	insert := `INSERT INTO question_progress (device_id, question_id)
		 VALUES (?, ?)
		 ON CONFLICT(device_id, question_id) DO NOTHING`
	if _, err := s.db.Exec(insert, deviceID, questionID); err != nil {
		return nil, fmt.Errorf("get or create progress: %w", err)
	}
	return s.get(deviceID, questionID)
}

func (s *LocalStore) RecordAnswer(deviceID string, questionID int64, selectedKey string, correct bool) (*models.QuestionProgress, error) {
	upsert := `INSERT INTO question_progress
		 (device_id, question_id, attempts, last_selected_key, last_correct, last_action_at)
		 VALUES (?, ?, 1, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(device_id, question_id) DO UPDATE SET
		     attempts = attempts + 1,
		     last_selected_key = excluded.last_selected_key,
		     last_correct = excluded.last_correct,
		     last_action_at = CURRENT_TIMESTAMP`
	if _, err := s.db.Exec(upsert, deviceID, questionID, selectedKey, correct); err != nil {
		return nil, fmt.Errorf("record progress answer: %w", err)
	}
	return s.get(deviceID, questionID)
}

func (s *LocalStore) ToggleFlag(deviceID string, questionID int64) (bool, error) {
	upsert := `INSERT INTO question_progress (device_id, question_id, flagged, last_action_at)
		 VALUES (?, ?, 1, CURRENT_TIMESTAMP)
		 ON CONFLICT(device_id, question_id) DO UPDATE SET
		     flagged = NOT flagged,
		     last_action_at = CURRENT_TIMESTAMP`
	if _, err := s.db.Exec(upsert, deviceID, questionID); err != nil {
		return false, fmt.Errorf("toggle flag: %w", err)
	}

	var flagged bool
	err := s.db.QueryRow(
		`SELECT flagged FROM question_progress WHERE device_id = ? AND question_id = ?`,
		deviceID, questionID,
	).Scan(&flagged)
	if err != nil {
		return false, fmt.Errorf("toggle flag: %w", err)
	}
	return flagged, nil
}

func (s *LocalStore) SaveNotes(deviceID string, questionID int64, notes string) (*models.QuestionProgress, error) {
	upsert := `INSERT INTO question_progress (device_id, question_id, notes, last_action_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(device_id, question_id) DO UPDATE SET
		     notes = excluded.notes,
		     last_action_at = CURRENT_TIMESTAMP`
	if _, err := s.db.Exec(upsert, deviceID, questionID, notes); err != nil {
		return nil, fmt.Errorf("save notes: %w", err)
	}
	return s.get(deviceID, questionID)
}

func (s *LocalStore) AccrueTime(deviceID string, questionID int64, seconds int) (*models.QuestionProgress, error) {
	upsert := `INSERT INTO question_progress (device_id, question_id, time_spent_sec, last_action_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(device_id, question_id) DO UPDATE SET
		     time_spent_sec = time_spent_sec + excluded.time_spent_sec,
		     last_action_at = CURRENT_TIMESTAMP`
	if _, err := s.db.Exec(upsert, deviceID, questionID, seconds); err != nil {
		return nil, fmt.Errorf("accrue time: %w", err)
	}
	return s.get(deviceID, questionID)
}

func (s *LocalStore) get(deviceID string, questionID int64) (*models.QuestionProgress, error) {
	var p models.QuestionProgress
	err := s.db.QueryRow(
		`SELECT id, question_id, attempts, last_selected_key, last_correct,
		        flagged, notes, time_spent_sec, last_action_at
		 FROM question_progress
		 WHERE device_id = ? AND question_id = ?`,
		deviceID, questionID,
	).Scan(
		&p.ID, &p.QuestionID, &p.Attempts, &p.LastSelectedKey, &p.LastCorrect,
		&p.Flagged, &p.Notes, &p.TimeSpentSec, &p.LastActionAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("progress record missing after upsert")
	}
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	return &p, nil
}
