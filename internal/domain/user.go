// Package domain contains core domain types for the Gabarita application.
package domain

import (
	"time"
)

// PointsPerCorrectAnswer is added to a profile's total score for every correct attempt.
const PointsPerCorrectAnswer = 10

// UserProfile represents a learner known to the backend.
type UserProfile struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	TotalScore  int       `json:"total_score"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DeriveDisplayName builds a placeholder name for a profile created implicitly.
func DeriveDisplayName(userID string) string {
	if len(userID) > 8 {
		return "estudante-" + userID[len(userID)-8:]
	}
	return "estudante"
}
