package models

import (
	"fmt"
	"time"
)

type ReviewStatus string

const (
	StatusDraft       ReviewStatus = "draft"
	StatusUnderReview ReviewStatus = "under_review"
	StatusApproved    ReviewStatus = "approved"
	StatusArchived    ReviewStatus = "archived"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

var ValidDifficulties = map[Difficulty]bool{
	DifficultyEasy:   true,
	DifficultyMedium: true,
	DifficultyHard:   true,
}

// OptionKeys are the letter keys options are served under, in order.
var OptionKeys = []string{"A", "B", "C", "D", "E"}

var ValidOptionKeys = map[string]bool{
	"A": true, "B": true, "C": true, "D": true, "E": true,
}

// ── Core Structs ───────────────────────────────────────

// Question is owned by the external content-review workflow; the engine
// only ever reads approved rows. CorrectKey is always the normalized
// letter form — the index/letter split in storage is reconciled at scan
// time by the questionbank client.
type Question struct {
	ID         int64        `json:"id"`
	ExamType   string       `json:"exam_type"`
	Topic      string       `json:"topic"`
	Subtopic   string       `json:"subtopic,omitempty"`
	Difficulty Difficulty   `json:"difficulty"`
	Status     ReviewStatus `json:"status"`
	Stem       string       `json:"stem"`
	CorrectKey string       `json:"correct_key"`
	Options    []Option     `json:"options"`
	CreatedAt  time.Time    `json:"created_at"`
}

type Option struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	Key        string `json:"key"`
	Text       string `json:"text"`
	Rationale  string `json:"rationale,omitempty"`
}

// NormalizeCorrectKey reconciles the two correct-answer representations
// found in the question store: an explicit letter key, or a zero-based
// option index (index i maps to 'A'+i). Exactly one must be present.
func NormalizeCorrectKey(letter *string, index *int64) (string, error) {
	if letter != nil && *letter != "" {
		if !ValidOptionKeys[*letter] {
			return "", fmt.Errorf("invalid correct key %q", *letter)
		}
		return *letter, nil
	}
	if index != nil {
		if *index < 0 || *index >= int64(len(OptionKeys)) {
			return "", fmt.Errorf("correct index %d out of range", *index)
		}
		return OptionKeys[*index], nil
	}
	return "", fmt.Errorf("question has no correct-answer indicator")
}

// ── Serving Types (strip answers) ──────────────────────

type ServeQuestion struct {
	ID         int64         `json:"id"`
	ExamType   string        `json:"exam_type"`
	Topic      string        `json:"topic"`
	Subtopic   string        `json:"subtopic,omitempty"`
	Difficulty Difficulty    `json:"difficulty"`
	Stem       string        `json:"stem"`
	Options    []ServeOption `json:"options"`
}

type ServeOption struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

func (q *Question) ToServeQuestion() ServeQuestion {
	sq := ServeQuestion{
		ID:         q.ID,
		ExamType:   q.ExamType,
		Topic:      q.Topic,
		Subtopic:   q.Subtopic,
		Difficulty: q.Difficulty,
		Stem:       q.Stem,
	}
	for _, o := range q.Options {
		sq.Options = append(sq.Options, ServeOption{Key: o.Key, Text: o.Text})
	}
	return sq
}

// ── Request/Response Types ─────────────────────────────

type QuestionFilter struct {
	ExamType   string
	Topic      string
	Difficulty string
}

type QuestionListResponse struct {
	Questions []ServeQuestion `json:"questions"`
	Total     int             `json:"total"`
	Page      int             `json:"page"`
	PageSize  int             `json:"page_size"`
}
