package models

import "time"

// ProgressIdentity names the owner of a per-question progress record:
// an authenticated user, or an anonymous device when no user is present.
// Exactly one side is set; the store is chosen by which one it is.
type ProgressIdentity struct {
	UserID   int64
	DeviceID string
}

func (id ProgressIdentity) Authenticated() bool {
	return id.UserID > 0
}

// QuestionProgress tracks engagement with one question independent of
// any timed attempt. Created lazily on first view, updated continuously
// while the question is on screen, never deleted by the engine.
type QuestionProgress struct {
	ID              int64     `json:"id"`
	QuestionID      int64     `json:"question_id"`
	Attempts        int       `json:"attempts"`
	LastSelectedKey *string   `json:"last_selected_key,omitempty"`
	LastCorrect     *bool     `json:"last_correct,omitempty"`
	Flagged         bool      `json:"flagged"`
	Notes           string    `json:"notes"`
	TimeSpentSec    int       `json:"time_spent_sec"`
	LastActionAt    time.Time `json:"last_action_at"`
}

// ── Request Types ─────────────────────────────────────

type ProgressAnswerRequest struct {
	SelectedKey string `json:"selected_key"`
}

type ProgressNotesRequest struct {
	Notes string `json:"notes"`
}

type AccrueTimeRequest struct {
	Seconds int `json:"seconds"`
}

// ── Response Types ────────────────────────────────────

type FlagResponse struct {
	Flagged bool `json:"flagged"`
}
