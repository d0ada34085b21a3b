package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gabarita-ai/gabarita/internal/domain"
	"github.com/gabarita-ai/gabarita/internal/gamification"
	"github.com/gabarita-ai/gabarita/internal/identity"
)

// checkAndGrantRequest mirrors the remote procedure's parameter names.
type checkAndGrantRequest struct {
	UserID                string  `json:"p_user_id"`
	SimuladoAccuracy      float64 `json:"p_simulado_accuracy"`
	SimuladoQuestionCount int     `json:"p_simulado_question_count"`
}

// Achievements handles GET /api/achievements.
func (h *Handler) Achievements(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.repo.ListAchievements(r.Context())
	if err != nil {
		h.logger.Error("Failed to list achievements", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list achievements")
		return
	}
	if catalog == nil {
		catalog = []domain.Achievement{}
	}
	JSON(w, http.StatusOK, catalog)
}

// UnlockedAchievements handles GET /api/achievements/unlocked.
func (h *Handler) UnlockedAchievements(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	unlocked, err := h.repo.ListUnlocked(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list unlocked achievements", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to list unlocked achievements")
		return
	}
	if unlocked == nil {
		unlocked = []domain.UnlockedAchievement{}
	}
	JSON(w, http.StatusOK, unlocked)
}

// CheckAndGrantAchievements handles POST /api/rpc/check_and_grant_achievements
// and returns only the achievements granted by this call.
func (h *Handler) CheckAndGrantAchievements(w http.ResponseWriter, r *http.Request) {
	var req checkAndGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		req.UserID = identity.UserIDFromContext(r.Context())
	}
	if req.UserID == "" {
		Error(w, http.StatusBadRequest, "p_user_id is required")
		return
	}
	if !identity.ValidUserID(req.UserID) {
		Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	granted, err := h.grants.CheckAndGrant(r.Context(), req.UserID, domain.SimuladoResult{
		Accuracy:      req.SimuladoAccuracy,
		QuestionCount: req.SimuladoQuestionCount,
	})
	if err != nil {
		if errors.Is(err, gamification.ErrInvalidInput) {
			Error(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("Achievement check failed", "error", err, "user_id", req.UserID)
		Error(w, http.StatusInternalServerError, "failed to check achievements")
		return
	}
	JSON(w, http.StatusOK, granted)
}
