package progress

import (
	"database/sql"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/studyhall/backend/internal/models"
)

// memBackend backs both identity kinds in tests, keyed by a string
// owner.
type memBackend struct {
	mu      sync.Mutex
	nextID  int64
	records map[string]map[int64]*models.QuestionProgress
}

func newMemBackend() *memBackend {
	return &memBackend{records: map[string]map[int64]*models.QuestionProgress{}}
}

func (m *memBackend) getOrCreate(owner string, questionID int64) *models.QuestionProgress {
	if m.records[owner] == nil {
		m.records[owner] = map[int64]*models.QuestionProgress{}
	}
	p, ok := m.records[owner][questionID]
	if !ok {
		m.nextID++
		p = &models.QuestionProgress{ID: m.nextID, QuestionID: questionID, LastActionAt: time.Now()}
		m.records[owner][questionID] = p
	}
	return p
}

func copyOf(p *models.QuestionProgress) *models.QuestionProgress {
	cp := *p
	return &cp
}

func (m *memBackend) GetOrCreate(deviceID string, questionID int64) (*models.QuestionProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyOf(m.getOrCreate(deviceID, questionID)), nil
}

func (m *memBackend) RecordAnswer(deviceID string, questionID int64, selectedKey string, correct bool) (*models.QuestionProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.getOrCreate(deviceID, questionID)
	p.Attempts++
	p.LastSelectedKey = &selectedKey
	p.LastCorrect = &correct
	p.LastActionAt = time.Now()
	return copyOf(p), nil
}

func (m *memBackend) ToggleFlag(deviceID string, questionID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.getOrCreate(deviceID, questionID)
	p.Flagged = !p.Flagged
	p.LastActionAt = time.Now()
	return p.Flagged, nil
}

func (m *memBackend) SaveNotes(deviceID string, questionID int64, notes string) (*models.QuestionProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.getOrCreate(deviceID, questionID)
	p.Notes = notes
	p.LastActionAt = time.Now()
	return copyOf(p), nil
}

func (m *memBackend) AccrueTime(deviceID string, questionID int64, seconds int) (*models.QuestionProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.getOrCreate(deviceID, questionID)
	p.TimeSpentSec += seconds
	p.LastActionAt = time.Now()
	return copyOf(p), nil
}

// userBackend adapts memBackend to the int64-keyed interface.
type userBackend struct{ *memBackend }

func userKey(userID int64) string { return "user:" + strconv.FormatInt(userID, 10) }

func (u userBackend) GetOrCreate(userID, questionID int64) (*models.QuestionProgress, error) {
	return u.memBackend.GetOrCreate(userKey(userID), questionID)
}
func (u userBackend) RecordAnswer(userID, questionID int64, selectedKey string, correct bool) (*models.QuestionProgress, error) {
	return u.memBackend.RecordAnswer(userKey(userID), questionID, selectedKey, correct)
}
func (u userBackend) ToggleFlag(userID, questionID int64) (bool, error) {
	return u.memBackend.ToggleFlag(userKey(userID), questionID)
}
func (u userBackend) SaveNotes(userID, questionID int64, notes string) (*models.QuestionProgress, error) {
	return u.memBackend.SaveNotes(userKey(userID), questionID, notes)
}
func (u userBackend) AccrueTime(userID, questionID int64, seconds int) (*models.QuestionProgress, error) {
	return u.memBackend.AccrueTime(userKey(userID), questionID, seconds)
}

type fakeQuestions struct{}

func (fakeQuestions) GetQuestion(questionID int64) (*models.Question, error) {
	if questionID != 42 {
		return nil, sql.ErrNoRows
	}
	return &models.Question{
		ID:         42,
		CorrectKey: "B",
		Options: []models.Option{
			{Key: "A", Text: "a"}, {Key: "B", Text: "b"}, {Key: "C", Text: "c"},
		},
	}, nil
}

func newTestProgress() (*Service, *memBackend, *memBackend) {
	users := newMemBackend()
	devices := newMemBackend()
	return NewService(userBackend{users}, devices, fakeQuestions{}), users, devices
}

var device = models.ProgressIdentity{DeviceID: "device-1"}

func TestFlagToggleIsItsOwnInverse(t *testing.T) {
	svc, _, _ := newTestProgress()

	initial, err := svc.View(device, 42)
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}

	first, err := svc.ToggleFlag(device, 42)
	if err != nil {
		t.Fatalf("ToggleFlag() error = %v", err)
	}
	if first == initial.Flagged {
		t.Error("first toggle did not flip the flag")
	}

	second, err := svc.ToggleFlag(device, 42)
	if err != nil {
		t.Fatalf("ToggleFlag() error = %v", err)
	}
	if second != initial.Flagged {
		t.Errorf("double toggle = %v, want initial %v", second, initial.Flagged)
	}

	// Flagging alone never touches the attempts counter.
	after, _ := svc.View(device, 42)
	if after.Attempts != initial.Attempts {
		t.Errorf("attempts = %d after flagging, want %d", after.Attempts, initial.Attempts)
	}
}

func TestRecordAnswerScoresServerSide(t *testing.T) {
	svc, _, _ := newTestProgress()

	p, err := svc.RecordAnswer(device, 42, "B")
	if err != nil {
		t.Fatalf("RecordAnswer() error = %v", err)
	}
	if p.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", p.Attempts)
	}
	if p.LastCorrect == nil || !*p.LastCorrect {
		t.Error("correct answer not marked correct")
	}

	p, err = svc.RecordAnswer(device, 42, "C")
	if err != nil {
		t.Fatalf("RecordAnswer() error = %v", err)
	}
	if p.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", p.Attempts)
	}
	if p.LastCorrect == nil || *p.LastCorrect {
		t.Error("wrong answer marked correct")
	}
	if p.LastSelectedKey == nil || *p.LastSelectedKey != "C" {
		t.Errorf("last selected key = %v, want C", p.LastSelectedKey)
	}
}

func TestRecordAnswerRejectsNonOption(t *testing.T) {
	svc, _, _ := newTestProgress()

	// D is a valid letter but not an option on this question.
	if _, err := svc.RecordAnswer(device, 42, "D"); !errors.Is(err, ErrInvalidSelection) {
		t.Errorf("RecordAnswer(D) error = %v, want ErrInvalidSelection", err)
	}
}

func TestTimeAccrualIsMonotonic(t *testing.T) {
	svc, _, _ := newTestProgress()

	var last int
	for _, delta := range []int{5, 12, 3} {
		p, err := svc.AccrueTime(device, 42, delta)
		if err != nil {
			t.Fatalf("AccrueTime(%d) error = %v", delta, err)
		}
		if p.TimeSpentSec <= last && last > 0 {
			t.Errorf("time_spent_sec went from %d to %d", last, p.TimeSpentSec)
		}
		last = p.TimeSpentSec
	}
	if last != 20 {
		t.Errorf("time_spent_sec = %d, want 20", last)
	}
}

func TestIdentitiesStayIndependent(t *testing.T) {
	svc, _, _ := newTestProgress()
	user := models.ProgressIdentity{UserID: 9}

	svc.RecordAnswer(device, 42, "B")
	svc.RecordAnswer(device, 42, "B")

	// Signing in does not inherit the device history.
	p, err := svc.View(user, 42)
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
	if p.Attempts != 0 {
		t.Errorf("user record has %d attempts, want 0 (no merge on sign-in)", p.Attempts)
	}

	d, _ := svc.View(device, 42)
	if d.Attempts != 2 {
		t.Errorf("device record has %d attempts, want 2", d.Attempts)
	}
}
