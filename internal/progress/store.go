package progress

import (
	"database/sql"
	"fmt"

	"github.com/studyhall/backend/internal/models"
)

// Store is the Postgres progress backend for authenticated users. Every
// mutation is an upsert so the record is created lazily on first touch.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const progressCols = `id, question_id, attempts, last_selected_key, last_correct,
	flagged, COALESCE(notes, ''), time_spent_sec, last_action_at`

func (s *Store) GetOrCreate(userID, questionID int64) (*models.QuestionProgress, error) {
	query := fmt.Sprintf(`INSERT INTO question_progress (user_id, question_id)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id, question_id) DO UPDATE SET user_id = question_progress.user_id
		 RETURNING %s`, progressCols)

	return s.scanOne(s.db.QueryRow(query, userID, questionID), "get or create progress")
}

func (s *Store) RecordAnswer(userID, questionID int64, selectedKey string, correct bool) (*models.QuestionProgress, error) {
	query := fmt.Sprintf(`INSERT INTO question_progress
		 (user_id, question_id, attempts, last_selected_key, last_correct, last_action_at)
		 VALUES ($1, $2, 1, $3, $4, NOW())
		 ON CONFLICT (user_id, question_id) DO UPDATE SET
		     attempts = question_progress.attempts + 1,
		     last_selected_key = $3,
		     last_correct = $4,
		     last_action_at = NOW()
		 RETURNING %s`, progressCols)

	return s.scanOne(s.db.QueryRow(query, userID, questionID, selectedKey, correct), "record progress answer")
}

// ToggleFlag flips the review flag without touching the attempts
// counter or any other field.
func (s *Store) ToggleFlag(userID, questionID int64) (bool, error) {
	query := `INSERT INTO question_progress (user_id, question_id, flagged, last_action_at)
		 VALUES ($1, $2, TRUE, NOW())
		 ON CONFLICT (user_id, question_id) DO UPDATE SET
		     flagged = NOT question_progress.flagged,
		     last_action_at = NOW()
		 RETURNING flagged`

	var flagged bool
	if err := s.db.QueryRow(query, userID, questionID).Scan(&flagged); err != nil {
		return false, fmt.Errorf("toggle flag: %w", err)
	}
	return flagged, nil
}

func (s *Store) SaveNotes(userID, questionID int64, notes string) (*models.QuestionProgress, error) {
	query := fmt.Sprintf(`INSERT INTO question_progress (user_id, question_id, notes, last_action_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (user_id, question_id) DO UPDATE SET
		     notes = $3,
		     last_action_at = NOW()
		 RETURNING %s`, progressCols)

	return s.scanOne(s.db.QueryRow(query, userID, questionID, notes), "save notes")
}

// AccrueTime adds foreground seconds to the cumulative counter. The
// counter only ever grows; callers reject non-positive deltas.
func (s *Store) AccrueTime(userID, questionID int64, seconds int) (*models.QuestionProgress, error) {
	query := fmt.Sprintf(`INSERT INTO question_progress (user_id, question_id, time_spent_sec, last_action_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (user_id, question_id) DO UPDATE SET
		     time_spent_sec = question_progress.time_spent_sec + $3,
		     last_action_at = NOW()
		 RETURNING %s`, progressCols)

	return s.scanOne(s.db.QueryRow(query, userID, questionID, seconds), "accrue time")
}

func (s *Store) scanOne(row *sql.Row, op string) (*models.QuestionProgress, error) {
	var p models.QuestionProgress
	err := row.Scan(
		&p.ID, &p.QuestionID, &p.Attempts, &p.LastSelectedKey, &p.LastCorrect,
		&p.Flagged, &p.Notes, &p.TimeSpentSec, &p.LastActionAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &p, nil
}
