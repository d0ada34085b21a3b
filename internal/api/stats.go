package api

import (
	"net/http"

	"github.com/gabarita-ai/gabarita/internal/domain"
)

// DashboardStats handles GET /api/dashboard-stats.
func (h *Handler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	stats, err := h.repo.DashboardStats(r.Context(), userID, h.now())
	if err != nil {
		h.logger.Error("Failed to compute dashboard stats", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "Erro ao carregar estatísticas")
		return
	}
	JSON(w, http.StatusOK, stats)
}

// PerformanceSummary handles GET /api/performance-summary.
func (h *Handler) PerformanceSummary(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	rows, err := h.repo.PerformanceSummary(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to compute performance summary", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "Erro ao carregar desempenho")
		return
	}
	if rows == nil {
		rows = []domain.PerformanceRow{}
	}
	JSON(w, http.StatusOK, rows)
}

// Subjects handles GET /api/subjects.
func (h *Handler) Subjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.repo.ListSubjects(r.Context())
	if err != nil {
		h.logger.Error("Failed to list subjects", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list subjects")
		return
	}
	if subjects == nil {
		subjects = []domain.Subject{}
	}
	JSON(w, http.StatusOK, subjects)
}
