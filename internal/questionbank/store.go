package questionbank

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/studyhall/backend/internal/models"
)

// Store is the read-only client over the question corpus. Questions are
// authored and reviewed elsewhere; the engine only ever consumes
// approved rows. The correct-answer indicator is normalized to a letter
// key here so nothing downstream branches on representation.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const questionCols = `q.id, q.exam_type, q.topic, COALESCE(q.subtopic, ''), q.difficulty, q.status,
	q.stem, q.correct_key, q.correct_index, q.created_at`

const optionCols = `o.id, o.option_key, o.option_text, COALESCE(o.rationale, '')`

// ListQuestions returns a page of approved questions matching the
// filter, with options attached. The page is resolved as question IDs
// first so the limit counts questions, never joined option rows — a
// LIMIT on the join would cut mid-question and serve a truncated
// option list.
func (s *Store) ListQuestions(filter models.QuestionFilter, limit, offset int) ([]models.Question, error) {
	where, args := filterClauses(filter)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT id FROM questions WHERE %s ORDER BY id LIMIT $%d OFFSET $%d`,
		strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list questions: page ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list questions: scan page id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Both the page query and GetQuestionsByIDs order by question ID,
	// so no re-ordering is needed here.
	return s.GetQuestionsByIDs(ids)
}

// CountQuestions reports how many approved questions match the filter,
// for honest list pagination totals.
func (s *Store) CountQuestions(filter models.QuestionFilter) (int, error) {
	where, args := filterClauses(filter)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM questions WHERE %s`, strings.Join(where, " AND "))

	var total int
	if err := s.db.QueryRow(query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return total, nil
}

func filterClauses(filter models.QuestionFilter) ([]string, []interface{}) {
	where := []string{`status = 'approved'`}
	args := []interface{}{}

	if filter.ExamType != "" {
		where = append(where, fmt.Sprintf("exam_type = $%d", len(args)+1))
		args = append(args, filter.ExamType)
	}
	if filter.Topic != "" {
		where = append(where, fmt.Sprintf("topic = $%d", len(args)+1))
		args = append(args, filter.Topic)
	}
	if filter.Difficulty != "" {
		where = append(where, fmt.Sprintf("difficulty = $%d", len(args)+1))
		args = append(args, filter.Difficulty)
	}
	return where, args
}

// GetQuestionsByIDs fetches the given questions with options. Rows come
// back in whatever order the database chooses — callers holding a
// persisted attempt re-order by their own ID list.
func (s *Store) GetQuestionsByIDs(ids []int64) ([]models.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT %s, %s
		 FROM questions q
		 JOIN question_options o ON o.question_id = q.id
		 WHERE q.id = ANY($1)
		 ORDER BY q.id, o.option_key`, questionCols, optionCols)

	rows, err := s.db.Query(query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get questions by ids: %w", err)
	}
	defer rows.Close()

	return s.scanQuestionsWithOptions(rows)
}

func (s *Store) GetQuestion(questionID int64) (*models.Question, error) {
	query := fmt.Sprintf(`SELECT %s, %s
		 FROM questions q
		 JOIN question_options o ON o.question_id = q.id
		 WHERE q.id = $1
		 ORDER BY o.option_key`, questionCols, optionCols)

	rows, err := s.db.Query(query, questionID)
	if err != nil {
		return nil, fmt.Errorf("get question: %w", err)
	}
	defer rows.Close()

	questions, err := s.scanQuestionsWithOptions(rows)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, sql.ErrNoRows
	}
	return &questions[0], nil
}

// CandidateIDs returns the IDs of approved questions matching the
// filter. Empty filter fields are not constrained, which is what lets
// the selector relax tiers by zeroing fields.
func (s *Store) CandidateIDs(filter models.QuestionFilter) ([]int64, error) {
	where, args := filterClauses(filter)
	query := fmt.Sprintf(`SELECT id FROM questions WHERE %s ORDER BY id`,
		strings.Join(where, " AND "))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("candidate ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan candidate id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) scanQuestionsWithOptions(rows *sql.Rows) ([]models.Question, error) {
	questionMap := make(map[int64]*models.Question)
	var questionOrder []int64

	for rows.Next() {
		var q models.Question
		var opt models.Option
		var correctKey *string
		var correctIndex *int64

		if err := rows.Scan(
			&q.ID, &q.ExamType, &q.Topic, &q.Subtopic, &q.Difficulty, &q.Status,
			&q.Stem, &correctKey, &correctIndex, &q.CreatedAt,
			&opt.ID, &opt.Key, &opt.Text, &opt.Rationale,
		); err != nil {
			return nil, fmt.Errorf("scan question row: %w", err)
		}

		opt.QuestionID = q.ID

		if existing, ok := questionMap[q.ID]; ok {
			existing.Options = append(existing.Options, opt)
		} else {
			key, err := models.NormalizeCorrectKey(correctKey, correctIndex)
			if err != nil {
				return nil, fmt.Errorf("question %d: %w", q.ID, err)
			}
			q.CorrectKey = key
			q.Options = []models.Option{opt}
			questionMap[q.ID] = &q
			questionOrder = append(questionOrder, q.ID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	questions := make([]models.Question, 0, len(questionOrder))
	for _, id := range questionOrder {
		questions = append(questions, *questionMap[id])
	}
	return questions, nil
}
