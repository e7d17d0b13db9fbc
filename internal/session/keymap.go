package session

import "github.com/studyhall/backend/internal/models"

// ApplyKey translates a keyboard shortcut into a session action:
// digits 1–5 select the option at that ordinal for the current
// question, arrow keys navigate. Unknown keys are ignored so clients
// can forward keydown events without filtering. Shortcuts are rejected
// in terminal states like any other mutation.
func (s *Session) ApplyKey(key string) (*AnswerOutcome, error) {
	switch key {
	case "ArrowRight":
		_, err := s.Next()
		return nil, err
	case "ArrowLeft":
		_, err := s.Prev()
		return nil, err
	case "1", "2", "3", "4", "5":
		// Resolved against the cursor and submitted under one lock,
		// so a concurrent navigation cannot slip between the two.
		return s.submitCurrent(models.OptionKeys[key[0]-'1'])
	default:
		return nil, nil
	}
}
