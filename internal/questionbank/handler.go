package questionbank

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/studyhall/backend/internal/models"
)

// QuestionStore is what the browse surface reads. *Store implements it
// over Postgres; tests swap in a fake.
type QuestionStore interface {
	ListQuestions(filter models.QuestionFilter, limit, offset int) ([]models.Question, error)
	CountQuestions(filter models.QuestionFilter) (int, error)
	GetQuestion(questionID int64) (*models.Question, error)
}

type Handler struct {
	store QuestionStore
}

func NewHandler(store QuestionStore) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/questions", h.ListQuestions).Methods("GET")
	r.HandleFunc("/questions/{id}", h.GetQuestion).Methods("GET")
}

// ListQuestions serves the browse surface: approved questions with
// answers stripped.
func (h *Handler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := models.QuestionFilter{
		ExamType:   query.Get("exam_type"),
		Topic:      query.Get("topic"),
		Difficulty: query.Get("difficulty"),
	}
	page := intQueryParam(query, "page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := intQueryParam(query, "page_size", 20)
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	total, err := h.store.CountQuestions(filter)
	if err != nil {
		log.Printf("[questionbank] CountQuestions error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to list questions", Code: "load_failure"})
		return
	}

	questions, err := h.store.ListQuestions(filter, pageSize, (page-1)*pageSize)
	if err != nil {
		log.Printf("[questionbank] ListQuestions error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to list questions", Code: "load_failure"})
		return
	}

	serve := make([]models.ServeQuestion, 0, len(questions))
	for i := range questions {
		serve = append(serve, questions[i].ToServeQuestion())
	}

	writeJSON(w, http.StatusOK, models.QuestionListResponse{
		Questions: serve,
		Total:     total,
		Page:      page,
		PageSize:  pageSize,
	})
}

// GetQuestion serves one question with options and rationales for the
// single-question review surface, which reveals immediately on answer.
func (h *Handler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid question ID"})
		return
	}

	question, err := h.store.GetQuestion(id)
	if err == sql.ErrNoRows {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Question not found"})
		return
	}
	if err != nil {
		log.Printf("[questionbank] GetQuestion error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to get question", Code: "load_failure"})
		return
	}

	writeJSON(w, http.StatusOK, question)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func intQueryParam(query url.Values, key string, defaultVal int) int {
	s := query.Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	return v
}
