package models

import "time"

type Mode string

const (
	ModePractice Mode = "practice"
	ModeTest     Mode = "test"
	ModeExam     Mode = "exam"
)

var ValidModes = map[Mode]bool{
	ModePractice: true,
	ModeTest:     true,
	ModeExam:     true,
}

// ── Core Structs ───────────────────────────────────────

// Attempt is one run through a fixed, ordered question list under a mode
// and optional time limit. QuestionIDs is persisted once at creation and
// is the sole source of truth for ordering on every subsequent load.
type Attempt struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"user_id"`
	Mode           Mode       `json:"mode"`
	ExamType       string     `json:"exam_type"`
	Topic          *string    `json:"topic,omitempty"`
	QuestionIDs    []int64    `json:"question_ids"`
	TimeLimitSec   int        `json:"time_limit_sec"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	TotalAttempted int        `json:"total_attempted"`
	CorrectCount   int        `json:"correct_count"`
	DurationSec    int        `json:"duration_sec"`
	Expired        bool       `json:"expired"`
}

func (a *Attempt) Finished() bool {
	return a.FinishedAt != nil
}

// AttemptItem records one answered question within an attempt. The
// correct key is snapshotted at answer time so later question edits do
// not retroactively change history. Rows are append-only.
type AttemptItem struct {
	ID          int64     `json:"id"`
	AttemptID   int64     `json:"attempt_id"`
	QuestionID  int64     `json:"question_id"`
	SelectedKey string    `json:"selected_key"`
	CorrectKey  string    `json:"correct_key"`
	Correct     bool      `json:"correct"`
	Topic       string    `json:"topic"`
	Position    int       `json:"position"`
	AnsweredAt  time.Time `json:"answered_at"`
}

// ── Request Types ─────────────────────────────────────

type CreateAttemptRequest struct {
	Mode         Mode    `json:"mode"`
	ExamType     string  `json:"exam_type"`
	Topic        *string `json:"topic,omitempty"`
	Difficulty   *string `json:"difficulty,omitempty"`
	Count        int     `json:"count"`
	TimeLimitSec int     `json:"time_limit_sec"`
}

type RecordAnswerRequest struct {
	QuestionID  int64  `json:"question_id"`
	SelectedKey string `json:"selected_key"`
}

// NavigateRequest carries either an explicit navigation action or a raw
// key event the engine resolves to one.
type NavigateRequest struct {
	Action string `json:"action"` // next | prev | jump | key
	Index  int    `json:"index,omitempty"`
	Key    string `json:"key,omitempty"`
}

type HeartbeatRequest struct {
	ElapsedSec int  `json:"elapsed_sec"`
	Visible    bool `json:"visible"`
}

// ── Response Types ────────────────────────────────────

type TopicScore struct {
	Attempted int `json:"attempted"`
	Correct   int `json:"correct"`
}

type AttemptSummary struct {
	Correct    int                   `json:"correct"`
	Total      int                   `json:"total"`
	Percentage int                   `json:"percentage"`
	ByTopic    map[string]TopicScore `json:"by_topic"`
}

type AnswerFeedback struct {
	Recorded   bool   `json:"recorded"`
	Revealed   bool   `json:"revealed"`
	Correct    bool   `json:"correct,omitempty"`
	CorrectKey string `json:"correct_key,omitempty"`
}

// AttemptView is the full resume payload: the durable attempt plus the
// live session position and the ordered, answer-stripped question list.
type AttemptView struct {
	Attempt      Attempt         `json:"attempt"`
	Questions    []ServeQuestion `json:"questions"`
	CurrentIndex int             `json:"current_index"`
	Phase        string          `json:"phase"`
	RemainingSec int             `json:"remaining_sec"`
	AnsweredIDs  []int64         `json:"answered_ids,omitempty"`
}

type HeartbeatResponse struct {
	RemainingSec int  `json:"remaining_sec"`
	Expired      bool `json:"expired"`
}

type NavigateResponse struct {
	CurrentIndex int    `json:"current_index"`
	Phase        string `json:"phase"`
}

type AttemptListResponse struct {
	Attempts []Attempt `json:"attempts"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
}
