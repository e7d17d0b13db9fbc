package attempts

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/studyhall/backend/internal/models"
	"github.com/studyhall/backend/internal/selector"
	"github.com/studyhall/backend/internal/session"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires the attempt surface onto an authenticated
// subrouter.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/attempts", h.CreateAttempt).Methods("POST")
	r.HandleFunc("/attempts", h.ListAttempts).Methods("GET")
	r.HandleFunc("/attempts/{id}", h.GetAttempt).Methods("GET")
	r.HandleFunc("/attempts/{id}/answers", h.RecordAnswer).Methods("POST")
	r.HandleFunc("/attempts/{id}/navigate", h.Navigate).Methods("POST")
	r.HandleFunc("/attempts/{id}/heartbeat", h.Heartbeat).Methods("POST")
	r.HandleFunc("/attempts/{id}/finish", h.FinishAttempt).Methods("POST")
}

func (h *Handler) CreateAttempt(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("user_id").(int64)

	var req models.CreateAttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", "bad_request")
		return
	}

	if !models.ValidModes[req.Mode] {
		h.writeError(w, http.StatusBadRequest, "Mode must be practice, test, or exam", "bad_request")
		return
	}
	if req.ExamType == "" {
		h.writeError(w, http.StatusBadRequest, "exam_type is required", "bad_request")
		return
	}
	if req.Count <= 0 {
		req.Count = 10
	}
	if req.Count > 100 {
		req.Count = 100
	}
	if session.PolicyFor(req.Mode).Timed && req.TimeLimitSec <= 0 {
		h.writeError(w, http.StatusBadRequest, "time_limit_sec is required for timed modes", "bad_request")
		return
	}

	view, err := h.service.CreateAttempt(userID, req)
	if err != nil {
		if errors.Is(err, selector.ErrInsufficientQuestions) {
			h.writeError(w, http.StatusConflict, "Not enough approved questions for this configuration", "insufficient_questions")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "Failed to create attempt", "create_failure")
		return
	}

	h.writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("user_id").(int64)
	attemptID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	view, err := h.service.GetAttempt(userID, attemptID)
	if err != nil {
		h.writeServiceError(w, err, "Failed to load attempt")
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) RecordAnswer(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("user_id").(int64)
	attemptID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req models.RecordAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", "bad_request")
		return
	}

	feedback, err := h.service.RecordAnswer(userID, attemptID, req)
	if err != nil {
		h.writeServiceError(w, err, "Failed to record answer")
		return
	}
	h.writeJSON(w, http.StatusOK, feedback)
}

func (h *Handler) Navigate(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("user_id").(int64)
	attemptID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req models.NavigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", "bad_request")
		return
	}

	resp, err := h.service.Navigate(userID, attemptID, req)
	if err != nil {
		h.writeServiceError(w, err, "Failed to navigate")
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("user_id").(int64)
	attemptID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req models.HeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", "bad_request")
		return
	}

	resp, err := h.service.Heartbeat(userID, attemptID, req)
	if err != nil {
		h.writeServiceError(w, err, "Failed to apply heartbeat")
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) FinishAttempt(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("user_id").(int64)
	attemptID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	summary, err := h.service.FinishAttempt(userID, attemptID)
	if err != nil {
		h.writeServiceError(w, err, "Failed to finish attempt")
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("user_id").(int64)

	page := intQueryParam(r, "page", 1)
	pageSize := intQueryParam(r, "page_size", 20)
	if pageSize > 100 {
		pageSize = 100
	}

	resp, err := h.service.ListAttempts(userID, page, pageSize)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to list attempts", "load_failure")
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid attempt ID", "bad_request")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		h.writeError(w, http.StatusNotFound, "Attempt not found", "not_found")
	case errors.Is(err, session.ErrTerminal):
		h.writeError(w, http.StatusConflict, "Attempt is already finished", "attempt_finished")
	case errors.Is(err, ErrDuplicateAnswer):
		h.writeError(w, http.StatusConflict, "Question already answered", "duplicate_answer")
	case errors.Is(err, session.ErrAlreadyAnswered):
		h.writeError(w, http.StatusConflict, "Question already answered", "duplicate_answer")
	case errors.Is(err, session.ErrSelectionLocked):
		h.writeError(w, http.StatusConflict, "Selection is locked", "selection_locked")
	case errors.Is(err, session.ErrQuestionNotInList):
		h.writeError(w, http.StatusBadRequest, "Question is not part of this attempt", "bad_request")
	case errors.Is(err, session.ErrInvalidKey):
		h.writeError(w, http.StatusBadRequest, "Invalid option key", "bad_request")
	case errors.Is(err, session.ErrNothingSelected):
		h.writeError(w, http.StatusBadRequest, "No selection to submit", "bad_request")
	default:
		h.writeError(w, http.StatusInternalServerError, fallback, "load_failure")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg, code string) {
	h.writeJSON(w, status, models.ErrorResponse{Error: msg, Code: code})
}

func intQueryParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return fallback
	}
	return v
}
