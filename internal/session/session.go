package session

import (
	"errors"
	"sync"

	"github.com/studyhall/backend/internal/models"
)

type Phase string

const (
	PhaseActive    Phase = "active"
	PhaseCompleted Phase = "completed"
	PhaseExpired   Phase = "expired"
)

var (
	ErrTerminal          = errors.New("session is in a terminal state")
	ErrQuestionNotInList = errors.New("question is not part of this attempt")
	ErrSelectionLocked   = errors.New("selection is locked after reveal")
	ErrNothingSelected   = errors.New("no pending selection for question")
	ErrInvalidKey        = errors.New("invalid option key")
	ErrAlreadyAnswered   = errors.New("question already answered")
)

// QuestionRef is the slice of a question the state machine needs:
// identity, the normalized correct key, topic for the breakdown, and
// how many options exist so key validation can reject out-of-range
// letters.
type QuestionRef struct {
	ID          int64
	CorrectKey  string
	Topic       string
	OptionCount int
}

// AnswerOutcome describes what a submission did. Recorded means an
// AttemptItem must be persisted now; exam-mode submissions set only the
// pending selection and record nothing until finish. QuestionID and
// SelectedKey name what was actually revealed, so callers persist the
// session's answer rather than re-deriving it from the request.
type AnswerOutcome struct {
	Recorded    bool
	Revealed    bool
	QuestionID  int64
	SelectedKey string
	Correct     bool
	CorrectKey  string
	Topic       string
	Position    int
}

// PendingAnswer is an exam-mode selection flushed at finish or expiry.
type PendingAnswer struct {
	QuestionID  int64
	SelectedKey string
	CorrectKey  string
	Correct     bool
	Topic       string
	Position    int
}

// Snapshot is the periodically persisted slice of live state.
type Snapshot struct {
	AttemptID   int64
	DurationSec int
	Pending     map[int64]string
}

// Session is the in-memory state machine for one attempt. The question
// list is fixed at construction and never re-ordered; everything else
// is derived state. One logical thread of control per session — the
// mutex only guards against a second tab racing the snapshot worker.
type Session struct {
	mu sync.Mutex

	attemptID int64
	policy    ModePolicy
	questions []QuestionRef
	posByID   map[int64]int

	index    int
	timer    *Timer
	phase    Phase
	pending  map[int64]string
	answered map[int64]bool
	dirty    bool

	// Set when a resumed attempt comes back with its time budget
	// already spent but no expiry persisted (server died in between).
	// The next heartbeat reports expiry so the caller finalizes it.
	expireOnBeat bool
}

type Config struct {
	AttemptID    int64
	Policy       ModePolicy
	Questions    []QuestionRef
	TimeLimitSec int
	ConsumedSec  int
	Answered     []int64
	Pending      map[int64]string
	Finished     bool
	Expired      bool
}

// New builds a session, fresh or resumed. A resumed session picks up at
// the first unanswered question.
func New(cfg Config) *Session {
	limit := 0
	if cfg.Policy.Timed {
		limit = cfg.TimeLimitSec
	}

	s := &Session{
		attemptID: cfg.AttemptID,
		policy:    cfg.Policy,
		questions: cfg.Questions,
		posByID:   make(map[int64]int, len(cfg.Questions)),
		timer:     Restore(limit, cfg.ConsumedSec),
		phase:     PhaseActive,
		pending:   make(map[int64]string),
		answered:  make(map[int64]bool),
	}
	for i, q := range cfg.Questions {
		s.posByID[q.ID] = i
	}
	for _, id := range cfg.Answered {
		s.answered[id] = true
	}
	for id, key := range cfg.Pending {
		if _, ok := s.posByID[id]; ok {
			s.pending[id] = key
		}
	}
	switch {
	case cfg.Expired:
		s.phase = PhaseExpired
	case cfg.Finished:
		s.phase = PhaseCompleted
	default:
		s.expireOnBeat = s.timer.Expired()
	}
	s.index = s.firstOpenIndex()
	return s
}

func (s *Session) firstOpenIndex() int {
	for i, q := range s.questions {
		if !s.answered[q.ID] {
			return i
		}
	}
	return clampIndex(len(s.questions)-1, len(s.questions))
}

// ── Answering ───────────────────────────────────────────

// Select stages a choice for a question. Re-selection before reveal
// overwrites the pending choice. Once a question is revealed the
// selection is locked unless the policy keeps it open (exam).
func (s *Session) Select(questionID int64, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectLocked(questionID, key)
}

func (s *Session) selectLocked(questionID int64, key string) error {
	if s.phase != PhaseActive {
		return ErrTerminal
	}
	pos, ok := s.posByID[questionID]
	if !ok {
		return ErrQuestionNotInList
	}
	if !validKeyFor(key, s.questions[pos]) {
		return ErrInvalidKey
	}
	if s.answered[questionID] && s.policy.LockOnReveal {
		return ErrSelectionLocked
	}
	s.pending[questionID] = key
	s.dirty = true
	return nil
}

// Reveal locks in the pending selection for a question, computes
// correctness, and reports that an AttemptItem should be recorded.
func (s *Session) Reveal(questionID int64) (*AnswerOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revealLocked(questionID)
}

func (s *Session) revealLocked(questionID int64) (*AnswerOutcome, error) {
	if s.phase != PhaseActive {
		return nil, ErrTerminal
	}
	pos, ok := s.posByID[questionID]
	if !ok {
		return nil, ErrQuestionNotInList
	}
	if s.answered[questionID] {
		return nil, ErrAlreadyAnswered
	}
	key, ok := s.pending[questionID]
	if !ok {
		return nil, ErrNothingSelected
	}

	q := s.questions[pos]
	delete(s.pending, questionID)
	s.answered[questionID] = true
	s.dirty = true

	return &AnswerOutcome{
		Recorded:    true,
		Revealed:    true,
		QuestionID:  questionID,
		SelectedKey: key,
		Correct:     key == q.CorrectKey,
		CorrectKey:  q.CorrectKey,
		Topic:       q.Topic,
		Position:    pos,
	}, nil
}

// SubmitAnswer is the single entry point handlers use: stage the
// selection, then reveal immediately when the mode shows per-question
// feedback. Exam mode stays in the answering state until finish.
func (s *Session) SubmitAnswer(questionID int64, key string) (*AnswerOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.selectLocked(questionID, key); err != nil {
		return nil, err
	}
	if !s.policy.ImmediateFeedback {
		return &AnswerOutcome{QuestionID: questionID, SelectedKey: key}, nil
	}
	return s.revealLocked(questionID)
}

// submitCurrent answers whichever question the cursor is on. The
// cursor read and the submission share one critical section.
func (s *Session) submitCurrent(key string) (*AnswerOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.questions) == 0 {
		return nil, ErrQuestionNotInList
	}
	questionID := s.questions[s.index].ID
	if err := s.selectLocked(questionID, key); err != nil {
		return nil, err
	}
	if !s.policy.ImmediateFeedback {
		return &AnswerOutcome{QuestionID: questionID, SelectedKey: key}, nil
	}
	return s.revealLocked(questionID)
}

// ── Navigation ──────────────────────────────────────────

func (s *Session) Next() (int, error) { return s.move(1) }
func (s *Session) Prev() (int, error) { return s.move(-1) }

func (s *Session) move(delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseActive {
		return s.index, ErrTerminal
	}
	s.index = clampIndex(s.index+delta, len(s.questions))
	return s.index, nil
}

// JumpTo clamps out-of-bounds indices rather than erroring.
func (s *Session) JumpTo(index int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseActive {
		return s.index, ErrTerminal
	}
	s.index = clampIndex(index, len(s.questions))
	return s.index, nil
}

func clampIndex(i, n int) int {
	if n == 0 {
		return 0
	}
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// CurrentQuestionID returns the question at the cursor.
func (s *Session) CurrentQuestionID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.questions) == 0 {
		return 0
	}
	return s.questions[s.index].ID
}

// ── Timing ──────────────────────────────────────────────

// Heartbeat applies a visibility transition and client-reported
// foreground seconds. It returns true exactly once, on the beat that
// exhausts a timed attempt; the caller then expires the session.
func (s *Session) Heartbeat(elapsedSec int, visible bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseActive {
		return false
	}
	if s.expireOnBeat {
		s.expireOnBeat = false
		return true
	}
	if visible {
		s.timer.Show()
	} else {
		s.timer.Hide()
	}
	justExpired := s.timer.Advance(elapsedSec)
	if elapsedSec > 0 && visible {
		s.dirty = true
	}
	return justExpired
}

// ── Completion ──────────────────────────────────────────

// Finish moves the session to Completed and hands back any pending
// selections to persist (exam mode holds all of its answers open until
// this point). Idempotent: a second call returns nothing.
func (s *Session) Finish() []PendingAnswer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseActive {
		return nil
	}
	flushed := s.flushPendingLocked()
	s.phase = PhaseCompleted
	s.dirty = true
	return flushed
}

// Expire force-finishes a timed-out attempt. Unanswered questions stay
// unanswered; selections the user had already made are flushed so they
// count. Idempotent against duplicate timer callbacks.
func (s *Session) Expire() ([]PendingAnswer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseActive {
		return nil, false
	}
	flushed := s.flushPendingLocked()
	s.phase = PhaseExpired
	s.dirty = true
	return flushed, true
}

func (s *Session) flushPendingLocked() []PendingAnswer {
	var out []PendingAnswer
	for _, q := range s.questions {
		key, ok := s.pending[q.ID]
		if !ok {
			continue
		}
		delete(s.pending, q.ID)
		s.answered[q.ID] = true
		out = append(out, PendingAnswer{
			QuestionID:  q.ID,
			SelectedKey: key,
			CorrectKey:  q.CorrectKey,
			Correct:     key == q.CorrectKey,
			Topic:       q.Topic,
			Position:    s.posByID[q.ID],
		})
	}
	return out
}

// ── Observation ─────────────────────────────────────────

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

func (s *Session) RemainingSec() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer.RemainingSec()
}

func (s *Session) ConsumedSec() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer.ConsumedSec()
}

func (s *Session) AnsweredIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for _, q := range s.questions {
		if s.answered[q.ID] {
			ids = append(ids, q.ID)
		}
	}
	return ids
}

// TakeSnapshot returns the persistable slice of state when anything has
// changed since the last snapshot. A failed flush is re-marked dirty by
// the manager so the write retries on the next tick.
func (s *Session) TakeSnapshot() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return Snapshot{}, false
	}
	s.dirty = false

	pending := make(map[int64]string, len(s.pending))
	for id, key := range s.pending {
		pending[id] = key
	}
	return Snapshot{
		AttemptID:   s.attemptID,
		DurationSec: s.timer.ConsumedSec(),
		Pending:     pending,
	}, true
}

func (s *Session) MarkDirty() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

func validKeyFor(key string, q QuestionRef) bool {
	if !models.ValidOptionKeys[key] {
		return false
	}
	idx := int(key[0] - 'A')
	return idx < q.OptionCount
}
