package progress

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/studyhall/backend/internal/models"
)

const deviceHeader = "X-Device-ID"

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires the progress surface onto an optional-auth
// subrouter: a bearer token selects the user store, otherwise the
// X-Device-ID header selects the local device store.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/progress/{questionId}", h.View).Methods("GET")
	r.HandleFunc("/progress/{questionId}/answer", h.RecordAnswer).Methods("POST")
	r.HandleFunc("/progress/{questionId}/flag", h.ToggleFlag).Methods("POST")
	r.HandleFunc("/progress/{questionId}/notes", h.SaveNotes).Methods("PUT")
	r.HandleFunc("/progress/{questionId}/time", h.AccrueTime).Methods("POST")
}

// identity resolves who owns the progress record. Anonymous callers
// without a device ID get one minted and echoed back so the client can
// persist it.
func (h *Handler) identity(w http.ResponseWriter, r *http.Request) models.ProgressIdentity {
	if userID, ok := r.Context().Value("user_id").(int64); ok {
		return models.ProgressIdentity{UserID: userID}
	}

	deviceID := r.Header.Get(deviceHeader)
	if deviceID == "" {
		deviceID = uuid.NewString()
	}
	w.Header().Set(deviceHeader, deviceID)
	return models.ProgressIdentity{DeviceID: deviceID}
}

func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	questionID, ok := h.pathQuestionID(w, r)
	if !ok {
		return
	}

	p, err := h.service.View(h.identity(w, r), questionID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handler) RecordAnswer(w http.ResponseWriter, r *http.Request) {
	questionID, ok := h.pathQuestionID(w, r)
	if !ok {
		return
	}

	var req models.ProgressAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SelectedKey == "" {
		h.writeError(w, http.StatusBadRequest, "selected_key is required", "bad_request")
		return
	}

	p, err := h.service.RecordAnswer(h.identity(w, r), questionID, req.SelectedKey)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handler) ToggleFlag(w http.ResponseWriter, r *http.Request) {
	questionID, ok := h.pathQuestionID(w, r)
	if !ok {
		return
	}

	flagged, err := h.service.ToggleFlag(h.identity(w, r), questionID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, models.FlagResponse{Flagged: flagged})
}

func (h *Handler) SaveNotes(w http.ResponseWriter, r *http.Request) {
	questionID, ok := h.pathQuestionID(w, r)
	if !ok {
		return
	}

	var req models.ProgressNotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", "bad_request")
		return
	}

	p, err := h.service.SaveNotes(h.identity(w, r), questionID, req.Notes)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handler) AccrueTime(w http.ResponseWriter, r *http.Request) {
	questionID, ok := h.pathQuestionID(w, r)
	if !ok {
		return
	}

	var req models.AccrueTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", "bad_request")
		return
	}
	if req.Seconds <= 0 {
		h.writeError(w, http.StatusBadRequest, "seconds must be positive", "bad_request")
		return
	}

	p, err := h.service.AccrueTime(h.identity(w, r), questionID, req.Seconds)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handler) pathQuestionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["questionId"], 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid question ID", "bad_request")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		h.writeError(w, http.StatusNotFound, "Question not found", "not_found")
	case errors.Is(err, ErrInvalidSelection):
		h.writeError(w, http.StatusBadRequest, "Selected key is not an option on this question", "bad_request")
	default:
		h.writeError(w, http.StatusInternalServerError, "Failed to update progress", "load_failure")
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
