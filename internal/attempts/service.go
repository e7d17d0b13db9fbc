package attempts

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/studyhall/backend/internal/models"
	"github.com/studyhall/backend/internal/selector"
	"github.com/studyhall/backend/internal/session"
)

// AttemptStore is the durable side of the engine. *Store implements it
// over Postgres; tests swap in an in-memory double.
type AttemptStore interface {
	CreateAttempt(a *models.Attempt) error
	GetAttempt(attemptID, userID int64) (*models.Attempt, error)
	LoadPending(attemptID int64) (map[int64]string, error)
	AppendItem(item *models.AttemptItem) error
	FinishAttempt(attemptID int64, durationSec int, expired bool) (bool, error)
	ListAttempts(userID int64, limit, offset int) ([]models.Attempt, int, error)
	ListItems(attemptID int64) ([]models.AttemptItem, error)
	SaveSnapshot(snap session.Snapshot) error
}

// QuestionSource is what the engine consumes from the question bank.
type QuestionSource interface {
	CandidateIDs(filter models.QuestionFilter) ([]int64, error)
	GetQuestionsByIDs(ids []int64) ([]models.Question, error)
}

// Service coordinates the durable attempt rows, the question bank, and
// the in-memory session state machines.
type Service struct {
	store     AttemptStore
	questions QuestionSource
	sessions  *session.Manager

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewService(store AttemptStore, questions QuestionSource) *Service {
	return &Service{
		store:     store,
		questions: questions,
		sessions:  session.NewManager(store),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// StartFlushWorker starts the periodic session snapshot loop.
func (s *Service) StartFlushWorker(ctx context.Context) {
	s.sessions.StartFlushWorker(ctx)
}

// CreateAttempt selects questions for the requested configuration,
// persists the attempt with its final ordering, and opens a live
// session. Selection shortfalls surface as
// selector.ErrInsufficientQuestions.
func (s *Service) CreateAttempt(userID int64, req models.CreateAttemptRequest) (*models.AttemptView, error) {
	policy := session.PolicyFor(req.Mode)

	cfg := selector.Config{
		ExamType: req.ExamType,
		Count:    req.Count,
	}
	if req.Topic != nil {
		cfg.Topic = *req.Topic
	}
	if req.Difficulty != nil {
		cfg.Difficulty = *req.Difficulty
	}

	s.rngMu.Lock()
	result, err := selector.Pick(s.questions, cfg, s.rng)
	s.rngMu.Unlock()
	if err != nil {
		return nil, err
	}

	limit := req.TimeLimitSec
	if !policy.Timed {
		limit = 0
	}

	attempt := &models.Attempt{
		UserID:       userID,
		Mode:         req.Mode,
		ExamType:     req.ExamType,
		Topic:        req.Topic,
		QuestionIDs:  result.QuestionIDs,
		TimeLimitSec: limit,
	}
	if err := s.store.CreateAttempt(attempt); err != nil {
		return nil, err
	}

	questions, err := s.orderedQuestions(attempt)
	if err != nil {
		return nil, err
	}

	sess := session.New(session.Config{
		AttemptID:    attempt.ID,
		Policy:       policy,
		Questions:    questionRefs(questions),
		TimeLimitSec: attempt.TimeLimitSec,
	})
	s.sessions.Put(sess)

	log.Printf("[attempts] user %d started %s attempt %d (%d questions, tier %d)",
		userID, attempt.Mode, attempt.ID, len(result.QuestionIDs), result.Tier)

	return s.buildView(attempt, sess, questions), nil
}

// GetAttempt is the resume path: the view is rebuilt entirely from the
// durable attempt row, in the persisted question order, regardless of
// whether a live session survived in memory.
func (s *Service) GetAttempt(userID, attemptID int64) (*models.AttemptView, error) {
	attempt, err := s.store.GetAttempt(attemptID, userID)
	if err != nil {
		return nil, err
	}

	questions, err := s.orderedQuestions(attempt)
	if err != nil {
		return nil, err
	}

	if attempt.Finished() {
		return s.finishedView(attempt, questions)
	}

	sess, err := s.liveSession(attempt)
	if err != nil {
		return nil, err
	}
	return s.buildView(attempt, sess, questions), nil
}

// RecordAnswer stages the selection and, when the mode reveals
// per-question feedback, persists the AttemptItem immediately. Exam
// mode records nothing until finish and the feedback says so.
func (s *Service) RecordAnswer(userID, attemptID int64, req models.RecordAnswerRequest) (*models.AnswerFeedback, error) {
	attempt, err := s.store.GetAttempt(attemptID, userID)
	if err != nil {
		return nil, err
	}
	if attempt.Finished() {
		return nil, session.ErrTerminal
	}

	sess, err := s.liveSession(attempt)
	if err != nil {
		return nil, err
	}

	outcome, err := sess.SubmitAnswer(req.QuestionID, req.SelectedKey)
	if err != nil {
		return nil, err
	}
	return s.applyOutcome(attemptID, outcome)
}

// applyOutcome persists what the session says was answered. The
// outcome carries the question ID and key it revealed, which is the
// only trustworthy pairing once concurrent tabs can move the cursor.
func (s *Service) applyOutcome(attemptID int64, outcome *session.AnswerOutcome) (*models.AnswerFeedback, error) {
	feedback := &models.AnswerFeedback{Recorded: true}
	if outcome == nil || !outcome.Recorded {
		return feedback, nil
	}

	item := &models.AttemptItem{
		AttemptID:   attemptID,
		QuestionID:  outcome.QuestionID,
		SelectedKey: outcome.SelectedKey,
		CorrectKey:  outcome.CorrectKey,
		Correct:     outcome.Correct,
		Topic:       outcome.Topic,
		Position:    outcome.Position,
	}
	if err := s.store.AppendItem(item); err != nil {
		return nil, err
	}

	feedback.Revealed = true
	feedback.Correct = outcome.Correct
	feedback.CorrectKey = outcome.CorrectKey
	return feedback, nil
}

// Navigate applies cursor movement or a raw key event. Digit keys
// resolve to answer submissions, so a recorded outcome is persisted
// here the same way RecordAnswer does it.
func (s *Service) Navigate(userID, attemptID int64, req models.NavigateRequest) (*models.NavigateResponse, error) {
	attempt, err := s.store.GetAttempt(attemptID, userID)
	if err != nil {
		return nil, err
	}
	if attempt.Finished() {
		return nil, session.ErrTerminal
	}

	sess, err := s.liveSession(attempt)
	if err != nil {
		return nil, err
	}

	switch req.Action {
	case "next":
		_, err = sess.Next()
	case "prev":
		_, err = sess.Prev()
	case "jump":
		_, err = sess.JumpTo(req.Index)
	case "key":
		var outcome *session.AnswerOutcome
		outcome, err = sess.ApplyKey(req.Key)
		if err == nil && outcome != nil && outcome.Recorded {
			if _, aerr := s.applyOutcome(attemptID, outcome); aerr != nil {
				return nil, aerr
			}
		}
	default:
		return nil, fmt.Errorf("unknown navigation action %q", req.Action)
	}
	if err != nil {
		return nil, err
	}

	return &models.NavigateResponse{
		CurrentIndex: sess.Index(),
		Phase:        string(sess.Phase()),
	}, nil
}

// Heartbeat feeds visibility and elapsed foreground time into the
// timer. The beat that exhausts the limit force-finishes the attempt
// exactly once.
func (s *Service) Heartbeat(userID, attemptID int64, req models.HeartbeatRequest) (*models.HeartbeatResponse, error) {
	attempt, err := s.store.GetAttempt(attemptID, userID)
	if err != nil {
		return nil, err
	}
	if attempt.Finished() {
		return &models.HeartbeatResponse{RemainingSec: 0, Expired: attempt.Expired}, nil
	}

	sess, err := s.liveSession(attempt)
	if err != nil {
		return nil, err
	}

	if sess.Heartbeat(req.ElapsedSec, req.Visible) {
		s.expire(attemptID, sess)
	}

	return &models.HeartbeatResponse{
		RemainingSec: sess.RemainingSec(),
		Expired:      sess.Phase() == session.PhaseExpired,
	}, nil
}

func (s *Service) expire(attemptID int64, sess *session.Session) {
	flushed, ok := sess.Expire()
	if !ok {
		return
	}
	s.persistFlushed(attemptID, flushed)
	if _, err := s.store.FinishAttempt(attemptID, sess.ConsumedSec(), true); err != nil {
		log.Printf("WARN: expire attempt %d: %v", attemptID, err)
	}
	s.sessions.Release(attemptID)
	log.Printf("[attempts] attempt %d expired", attemptID)
}

// FinishAttempt closes the attempt and returns the score summary.
// Calling it on an already-finished attempt recomputes the same summary
// from the stored items and changes nothing.
func (s *Service) FinishAttempt(userID, attemptID int64) (*models.AttemptSummary, error) {
	attempt, err := s.store.GetAttempt(attemptID, userID)
	if err != nil {
		return nil, err
	}

	if !attempt.Finished() {
		sess, err := s.liveSession(attempt)
		if err != nil {
			return nil, err
		}
		flushed := sess.Finish()
		s.persistFlushed(attemptID, flushed)
		if _, err := s.store.FinishAttempt(attemptID, sess.ConsumedSec(), false); err != nil {
			return nil, err
		}
		s.sessions.Release(attemptID)
	}

	return s.summarize(attemptID)
}

func (s *Service) persistFlushed(attemptID int64, flushed []session.PendingAnswer) {
	for _, p := range flushed {
		item := &models.AttemptItem{
			AttemptID:   attemptID,
			QuestionID:  p.QuestionID,
			SelectedKey: p.SelectedKey,
			CorrectKey:  p.CorrectKey,
			Correct:     p.Correct,
			Topic:       p.Topic,
			Position:    p.Position,
		}
		if err := s.store.AppendItem(item); err != nil && !errors.Is(err, ErrDuplicateAnswer) {
			log.Printf("WARN: flush pending answer for attempt %d question %d: %v",
				attemptID, p.QuestionID, err)
		}
	}
}

func (s *Service) summarize(attemptID int64) (*models.AttemptSummary, error) {
	items, err := s.store.ListItems(attemptID)
	if err != nil {
		return nil, err
	}

	summary := &models.AttemptSummary{ByTopic: map[string]models.TopicScore{}}
	for _, it := range items {
		summary.Total++
		score := summary.ByTopic[it.Topic]
		score.Attempted++
		if it.Correct {
			summary.Correct++
			score.Correct++
		}
		summary.ByTopic[it.Topic] = score
	}
	if summary.Total > 0 {
		summary.Percentage = int(math.Round(float64(summary.Correct) / float64(summary.Total) * 100))
	}
	return summary, nil
}

func (s *Service) ListAttempts(userID int64, page, pageSize int) (*models.AttemptListResponse, error) {
	offset := (page - 1) * pageSize
	attempts, total, err := s.store.ListAttempts(userID, pageSize, offset)
	if err != nil {
		return nil, err
	}
	if attempts == nil {
		attempts = []models.Attempt{}
	}
	return &models.AttemptListResponse{
		Attempts: attempts,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// liveSession returns the in-memory session for an active attempt,
// rebuilding it from durable state after a restart. The persisted
// question_ids list is the only ordering consulted.
func (s *Service) liveSession(attempt *models.Attempt) (*session.Session, error) {
	if sess, ok := s.sessions.Get(attempt.ID); ok {
		return sess, nil
	}

	questions, err := s.orderedQuestions(attempt)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListItems(attempt.ID)
	if err != nil {
		return nil, err
	}
	pending, err := s.store.LoadPending(attempt.ID)
	if err != nil {
		return nil, err
	}

	answered := make([]int64, 0, len(items))
	for _, it := range items {
		answered = append(answered, it.QuestionID)
	}

	sess := session.New(session.Config{
		AttemptID:    attempt.ID,
		Policy:       session.PolicyFor(attempt.Mode),
		Questions:    questionRefs(questions),
		TimeLimitSec: attempt.TimeLimitSec,
		ConsumedSec:  attempt.DurationSec,
		Answered:     answered,
		Pending:      pending,
		Finished:     attempt.Finished() && !attempt.Expired,
		Expired:      attempt.Expired,
	})
	s.sessions.Put(sess)
	log.Printf("[attempts] rebuilt session for attempt %d from durable state", attempt.ID)
	return sess, nil
}

// orderedQuestions loads the attempt's questions and re-orders them by
// the persisted ID list. A missing question means the corpus was
// mutated underneath a live attempt.
func (s *Service) orderedQuestions(attempt *models.Attempt) ([]models.Question, error) {
	loaded, err := s.questions.GetQuestionsByIDs(attempt.QuestionIDs)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]models.Question, len(loaded))
	for _, q := range loaded {
		byID[q.ID] = q
	}

	ordered := make([]models.Question, 0, len(attempt.QuestionIDs))
	for _, id := range attempt.QuestionIDs {
		q, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("attempt %d references missing question %d", attempt.ID, id)
		}
		ordered = append(ordered, q)
	}
	return ordered, nil
}

func questionRefs(questions []models.Question) []session.QuestionRef {
	refs := make([]session.QuestionRef, len(questions))
	for i, q := range questions {
		refs[i] = session.QuestionRef{
			ID:          q.ID,
			CorrectKey:  q.CorrectKey,
			Topic:       q.Topic,
			OptionCount: len(q.Options),
		}
	}
	return refs
}

func (s *Service) buildView(attempt *models.Attempt, sess *session.Session, questions []models.Question) *models.AttemptView {
	serve := make([]models.ServeQuestion, len(questions))
	for i, q := range questions {
		serve[i] = q.ToServeQuestion()
	}
	return &models.AttemptView{
		Attempt:      *attempt,
		Questions:    serve,
		CurrentIndex: sess.Index(),
		Phase:        string(sess.Phase()),
		RemainingSec: sess.RemainingSec(),
		AnsweredIDs:  sess.AnsweredIDs(),
	}
}

func (s *Service) finishedView(attempt *models.Attempt, questions []models.Question) (*models.AttemptView, error) {
	items, err := s.store.ListItems(attempt.ID)
	if err != nil {
		return nil, err
	}
	answered := make([]int64, 0, len(items))
	for _, it := range items {
		answered = append(answered, it.QuestionID)
	}

	serve := make([]models.ServeQuestion, len(questions))
	for i, q := range questions {
		serve[i] = q.ToServeQuestion()
	}

	phase := string(session.PhaseCompleted)
	if attempt.Expired {
		phase = string(session.PhaseExpired)
	}
	return &models.AttemptView{
		Attempt:      *attempt,
		Questions:    serve,
		CurrentIndex: 0,
		Phase:        phase,
		RemainingSec: 0,
		AnsweredIDs:  answered,
	}, nil
}
