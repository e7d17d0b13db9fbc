package questionbank

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/studyhall/backend/internal/models"
)

// fakeStore pages over a fixed corpus with the same contract as the
// Postgres store: limit and offset count questions, never joined rows.
type fakeStore struct {
	questions []models.Question
}

func newFakeStore(n, optionsPer int) *fakeStore {
	f := &fakeStore{}
	for i := 1; i <= n; i++ {
		q := models.Question{
			ID:         int64(i),
			ExamType:   "lsat",
			Topic:      "logic",
			Difficulty: models.DifficultyMedium,
			Status:     models.StatusApproved,
			Stem:       fmt.Sprintf("question %d", i),
			CorrectKey: "A",
		}
		for j := 0; j < optionsPer; j++ {
			q.Options = append(q.Options, models.Option{
				ID: int64(i*10 + j), QuestionID: q.ID, Key: models.OptionKeys[j], Text: "option",
			})
		}
		f.questions = append(f.questions, q)
	}
	return f
}

func (f *fakeStore) ListQuestions(filter models.QuestionFilter, limit, offset int) ([]models.Question, error) {
	if offset >= len(f.questions) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.questions) {
		end = len(f.questions)
	}
	return f.questions[offset:end], nil
}

func (f *fakeStore) CountQuestions(filter models.QuestionFilter) (int, error) {
	return len(f.questions), nil
}

func (f *fakeStore) GetQuestion(questionID int64) (*models.Question, error) {
	for i := range f.questions {
		if f.questions[i].ID == questionID {
			return &f.questions[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func listQuestions(t *testing.T, store QuestionStore, url string) models.QuestionListResponse {
	t.Helper()
	r := mux.NewRouter()
	NewHandler(store).RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", url, nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp models.QuestionListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestListQuestionsPageCountsQuestionsNotOptionRows(t *testing.T) {
	// 30 five-option questions. A page size of 20 means 20 whole
	// questions; a limit applied to the question×options join would
	// have cut after 4 questions and truncated the last one's options.
	store := newFakeStore(30, 5)

	resp := listQuestions(t, store, "/questions?page_size=20")
	if len(resp.Questions) != 20 {
		t.Fatalf("page has %d questions, want 20", len(resp.Questions))
	}
	for _, q := range resp.Questions {
		if len(q.Options) != 5 {
			t.Fatalf("question %d served with %d options, want all 5", q.ID, len(q.Options))
		}
	}
	if resp.Total != 30 {
		t.Errorf("Total = %d, want corpus count 30", resp.Total)
	}
	if resp.Page != 1 || resp.PageSize != 20 {
		t.Errorf("Page/PageSize = %d/%d, want 1/20", resp.Page, resp.PageSize)
	}
}

func TestListQuestionsSecondPage(t *testing.T) {
	store := newFakeStore(30, 4)

	resp := listQuestions(t, store, "/questions?page_size=20&page=2")
	if len(resp.Questions) != 10 {
		t.Fatalf("second page has %d questions, want the remaining 10", len(resp.Questions))
	}
	if resp.Questions[0].ID != 21 {
		t.Errorf("second page starts at question %d, want 21", resp.Questions[0].ID)
	}
	if resp.Total != 30 || resp.Page != 2 {
		t.Errorf("Total/Page = %d/%d, want 30/2", resp.Total, resp.Page)
	}
}

func TestListQuestionsStripsAnswers(t *testing.T) {
	store := newFakeStore(3, 5)

	resp := listQuestions(t, store, "/questions")
	raw, _ := json.Marshal(resp.Questions)
	for _, leak := range []string{`"correct_key"`, `"rationale"`} {
		if strings.Contains(string(raw), leak) {
			t.Errorf("list payload leaked %s", leak)
		}
	}
}
