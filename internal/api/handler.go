// Package api provides HTTP handlers for the Gabarita API.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gabarita-ai/gabarita/internal/gamification"
	"github.com/gabarita-ai/gabarita/internal/identity"
	"github.com/gabarita-ai/gabarita/internal/store"
)

// Handler serves the study-data endpoints.
type Handler struct {
	repo      store.Repository
	grants    *gamification.Service
	aiEnabled bool
	now       func() time.Time
	logger    *slog.Logger
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, grants *gamification.Service, aiEnabled bool, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		repo:      repo,
		grants:    grants,
		aiEnabled: aiEnabled,
		now:       time.Now,
		logger:    logger,
	}
}

// RegisterRoutes registers the study-data routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/me", h.GetMe)
		r.Get("/config", h.GetConfig)
		r.Get("/dashboard-stats", h.DashboardStats)
		r.Get("/performance-summary", h.PerformanceSummary)
		r.Get("/subjects", h.Subjects)
		r.Get("/achievements", h.Achievements)
		r.Get("/achievements/unlocked", h.UnlockedAchievements)
		r.Post("/rpc/check_and_grant_achievements", h.CheckAndGrantAchievements)
		r.Post("/attempts", h.RecordAttempt)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// requireUser returns the caller's user ID or writes a 400 and returns "".
func requireUser(w http.ResponseWriter, r *http.Request) string {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusBadRequest, "userId is required")
	}
	return userID
}

// GetMe returns the current user's profile.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	profile, err := h.repo.GetUserProfile(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to load profile", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	if profile == nil {
		Error(w, http.StatusNotFound, "user not found")
		return
	}
	JSON(w, http.StatusOK, profile)
}

// GetConfig returns the server configuration for the frontend.
func (h *Handler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"ai_enabled": h.aiEnabled,
	})
}
