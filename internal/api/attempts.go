package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gabarita-ai/gabarita/internal/domain"
	"github.com/gabarita-ai/gabarita/internal/identity"
)

type recordAttemptRequest struct {
	UserID           string `json:"userId"`
	QuestionID       string `json:"questionId"`
	SubjectID        string `json:"subjectId"`
	TopicID          string `json:"topicId"`
	IsCorrect        bool   `json:"isCorrect"`
	TimeSpentSeconds int    `json:"timeSpentSeconds"`
}

// RecordAttempt handles POST /api/attempts.
func (h *Handler) RecordAttempt(w http.ResponseWriter, r *http.Request) {
	var req recordAttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		req.UserID = identity.UserIDFromContext(r.Context())
	}
	switch {
	case req.UserID == "":
		Error(w, http.StatusBadRequest, "userId is required")
		return
	case !identity.ValidUserID(req.UserID):
		Error(w, http.StatusBadRequest, "invalid user id")
		return
	case strings.TrimSpace(req.QuestionID) == "":
		Error(w, http.StatusBadRequest, "questionId is required")
		return
	case req.TimeSpentSeconds < 0:
		Error(w, http.StatusBadRequest, "timeSpentSeconds must be >= 0")
		return
	}

	attempt := &domain.QuestionAttempt{
		UserID:           req.UserID,
		QuestionID:       req.QuestionID,
		SubjectID:        req.SubjectID,
		TopicID:          req.TopicID,
		IsCorrect:        req.IsCorrect,
		TimeSpentSeconds: req.TimeSpentSeconds,
		CreatedAt:        h.now(),
	}
	if err := h.repo.RecordAttempt(r.Context(), attempt); err != nil {
		h.logger.Error("Failed to record attempt", "error", err, "user_id", req.UserID)
		Error(w, http.StatusInternalServerError, "failed to record attempt")
		return
	}
	JSON(w, http.StatusCreated, map[string]string{"id": attempt.ID})
}
