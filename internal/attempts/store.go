package attempts

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/lib/pq"
	"github.com/studyhall/backend/internal/models"
	"github.com/studyhall/backend/internal/session"
)

var (
	ErrDuplicateAnswer = errors.New("question already answered in this attempt")
	ErrNotFound        = errors.New("attempt not found")
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const attemptCols = `id, user_id, mode, exam_type, topic, question_ids, time_limit_sec,
	started_at, finished_at, total_attempted, correct_count, duration_sec, expired`

// CreateAttempt persists the attempt, including the full ordered
// question ID list. The list is written before the first question is
// ever served so a crash mid-creation can never produce an attempt
// whose ordering differs on reload.
func (s *Store) CreateAttempt(a *models.Attempt) error {
	query := `INSERT INTO attempts (user_id, mode, exam_type, topic, question_ids, time_limit_sec)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, started_at`

	err := s.db.QueryRow(query,
		a.UserID, a.Mode, a.ExamType, a.Topic, pq.Array(a.QuestionIDs), a.TimeLimitSec,
	).Scan(&a.ID, &a.StartedAt)
	if err != nil {
		return fmt.Errorf("create attempt: %w", err)
	}
	return nil
}

func (s *Store) GetAttempt(attemptID, userID int64) (*models.Attempt, error) {
	query := fmt.Sprintf(`SELECT %s FROM attempts WHERE id = $1 AND user_id = $2`, attemptCols)

	var a models.Attempt
	var ids pq.Int64Array
	err := s.db.QueryRow(query, attemptID, userID).Scan(
		&a.ID, &a.UserID, &a.Mode, &a.ExamType, &a.Topic, &ids, &a.TimeLimitSec,
		&a.StartedAt, &a.FinishedAt, &a.TotalAttempted, &a.CorrectCount, &a.DurationSec, &a.Expired,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	a.QuestionIDs = []int64(ids)
	return &a, nil
}

// LoadPending reads back the snapshotted not-yet-recorded selections.
// JSONB object keys are strings, so question IDs round-trip through
// strconv.
func (s *Store) LoadPending(attemptID int64) (map[int64]string, error) {
	var raw []byte
	err := s.db.QueryRow(`SELECT pending_answers FROM attempts WHERE id = $1`, attemptID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load pending answers: %w", err)
	}

	byKey := map[string]string{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &byKey); err != nil {
			return nil, fmt.Errorf("decode pending answers: %w", err)
		}
	}

	pending := make(map[int64]string, len(byKey))
	for k, v := range byKey {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode pending answers: bad question id %q", k)
		}
		pending[id] = v
	}
	return pending, nil
}

// AppendItem inserts the answer row and bumps the attempt counters in
// one transaction. A second answer for the same question trips the
// unique constraint and maps to ErrDuplicateAnswer.
func (s *Store) AppendItem(item *models.AttemptItem) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("append item: begin: %w", err)
	}
	defer tx.Rollback()

	insert := `INSERT INTO attempt_items (attempt_id, question_id, selected_key, correct_key, correct, topic, position)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, answered_at`

	err = tx.QueryRow(insert,
		item.AttemptID, item.QuestionID, item.SelectedKey, item.CorrectKey,
		item.Correct, item.Topic, item.Position,
	).Scan(&item.ID, &item.AnsweredAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateAnswer
		}
		return fmt.Errorf("append item: %w", err)
	}

	update := `UPDATE attempts
		 SET total_attempted = total_attempted + 1,
		     correct_count = correct_count + CASE WHEN $2 THEN 1 ELSE 0 END
		 WHERE id = $1`
	if _, err := tx.Exec(update, item.AttemptID, item.Correct); err != nil {
		return fmt.Errorf("append item: update counters: %w", err)
	}

	return tx.Commit()
}

// FinishAttempt stamps the terminal state. The finished_at guard makes
// the operation idempotent: only the first caller gets finished=true,
// later calls are no-ops.
func (s *Store) FinishAttempt(attemptID int64, durationSec int, expired bool) (bool, error) {
	query := `UPDATE attempts
		 SET finished_at = NOW(), duration_sec = $2, expired = $3, pending_answers = '{}'::jsonb
		 WHERE id = $1 AND finished_at IS NULL`

	res, err := s.db.Exec(query, attemptID, durationSec, expired)
	if err != nil {
		return false, fmt.Errorf("finish attempt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("finish attempt: rows affected: %w", err)
	}
	return n > 0, nil
}

// SaveSnapshot persists the periodic session flush. Finished attempts
// are skipped by the WHERE clause so a late snapshot can never revive a
// terminal attempt.
func (s *Store) SaveSnapshot(snap session.Snapshot) error {
	byKey := make(map[string]string, len(snap.Pending))
	for id, key := range snap.Pending {
		byKey[strconv.FormatInt(id, 10)] = key
	}
	raw, err := json.Marshal(byKey)
	if err != nil {
		return fmt.Errorf("save snapshot: encode: %w", err)
	}

	query := `UPDATE attempts
		 SET duration_sec = $2, pending_answers = $3, snapshot_at = NOW()
		 WHERE id = $1 AND finished_at IS NULL`
	if _, err := s.db.Exec(query, snap.AttemptID, snap.DurationSec, raw); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *Store) ListAttempts(userID int64, limit, offset int) ([]models.Attempt, int, error) {
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM attempts WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count attempts: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM attempts
		 WHERE user_id = $1
		 ORDER BY started_at DESC
		 LIMIT $2 OFFSET $3`, attemptCols)

	rows, err := s.db.Query(query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []models.Attempt
	for rows.Next() {
		var a models.Attempt
		var ids pq.Int64Array
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.Mode, &a.ExamType, &a.Topic, &ids, &a.TimeLimitSec,
			&a.StartedAt, &a.FinishedAt, &a.TotalAttempted, &a.CorrectCount, &a.DurationSec, &a.Expired,
		); err != nil {
			return nil, 0, fmt.Errorf("scan attempt: %w", err)
		}
		a.QuestionIDs = []int64(ids)
		attempts = append(attempts, a)
	}
	return attempts, total, rows.Err()
}

func (s *Store) ListItems(attemptID int64) ([]models.AttemptItem, error) {
	query := `SELECT id, attempt_id, question_id, selected_key, correct_key, correct, topic, position, answered_at
		 FROM attempt_items
		 WHERE attempt_id = $1
		 ORDER BY position`

	rows, err := s.db.Query(query, attemptID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []models.AttemptItem
	for rows.Next() {
		var it models.AttemptItem
		if err := rows.Scan(
			&it.ID, &it.AttemptID, &it.QuestionID, &it.SelectedKey, &it.CorrectKey,
			&it.Correct, &it.Topic, &it.Position, &it.AnsweredAt,
		); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
