package progress

import (
	"errors"

	"github.com/studyhall/backend/internal/models"
)

var ErrInvalidSelection = errors.New("selected key is not an option on this question")

// UserBackend is the progress store for authenticated users.
type UserBackend interface {
	GetOrCreate(userID, questionID int64) (*models.QuestionProgress, error)
	RecordAnswer(userID, questionID int64, selectedKey string, correct bool) (*models.QuestionProgress, error)
	ToggleFlag(userID, questionID int64) (bool, error)
	SaveNotes(userID, questionID int64, notes string) (*models.QuestionProgress, error)
	AccrueTime(userID, questionID int64, seconds int) (*models.QuestionProgress, error)
}

// DeviceBackend is the progress store for anonymous devices.
type DeviceBackend interface {
	GetOrCreate(deviceID string, questionID int64) (*models.QuestionProgress, error)
	RecordAnswer(deviceID string, questionID int64, selectedKey string, correct bool) (*models.QuestionProgress, error)
	ToggleFlag(deviceID string, questionID int64) (bool, error)
	SaveNotes(deviceID string, questionID int64, notes string) (*models.QuestionProgress, error)
	AccrueTime(deviceID string, questionID int64, seconds int) (*models.QuestionProgress, error)
}

// QuestionSource resolves the correct key so device clients never see
// it; correctness is always computed server-side.
type QuestionSource interface {
	GetQuestion(questionID int64) (*models.Question, error)
}

// Service routes each progress operation to the backend the identity
// selects: Postgres for signed-in users, the local device store
// otherwise. Device history is deliberately never merged into a user
// account on sign-in; the two records stay independent.
type Service struct {
	users     UserBackend
	devices   DeviceBackend
	questions QuestionSource
}

func NewService(users UserBackend, devices DeviceBackend, questions QuestionSource) *Service {
	return &Service{users: users, devices: devices, questions: questions}
}

func (s *Service) View(id models.ProgressIdentity, questionID int64) (*models.QuestionProgress, error) {
	if id.Authenticated() {
		return s.users.GetOrCreate(id.UserID, questionID)
	}
	return s.devices.GetOrCreate(id.DeviceID, questionID)
}

// RecordAnswer scores the selection against the question's normalized
// correct key and bumps the per-question attempts counter.
func (s *Service) RecordAnswer(id models.ProgressIdentity, questionID int64, selectedKey string) (*models.QuestionProgress, error) {
	q, err := s.questions.GetQuestion(questionID)
	if err != nil {
		return nil, err
	}

	valid := false
	for _, opt := range q.Options {
		if opt.Key == selectedKey {
			valid = true
			break
		}
	}
	if !valid {
		return nil, ErrInvalidSelection
	}

	correct := selectedKey == q.CorrectKey
	if id.Authenticated() {
		return s.users.RecordAnswer(id.UserID, questionID, selectedKey, correct)
	}
	return s.devices.RecordAnswer(id.DeviceID, questionID, selectedKey, correct)
}

func (s *Service) ToggleFlag(id models.ProgressIdentity, questionID int64) (bool, error) {
	if id.Authenticated() {
		return s.users.ToggleFlag(id.UserID, questionID)
	}
	return s.devices.ToggleFlag(id.DeviceID, questionID)
}

func (s *Service) SaveNotes(id models.ProgressIdentity, questionID int64, notes string) (*models.QuestionProgress, error) {
	if id.Authenticated() {
		return s.users.SaveNotes(id.UserID, questionID, notes)
	}
	return s.devices.SaveNotes(id.DeviceID, questionID, notes)
}

func (s *Service) AccrueTime(id models.ProgressIdentity, questionID int64, seconds int) (*models.QuestionProgress, error) {
	if id.Authenticated() {
		return s.users.AccrueTime(id.UserID, questionID, seconds)
	}
	return s.devices.AccrueTime(id.DeviceID, questionID, seconds)
}
