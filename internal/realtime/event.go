// Package realtime pushes achievement unlocks to connected learners.
package realtime

import (
	"github.com/google/uuid"

	"github.com/gabarita-ai/gabarita/internal/domain"
)

// EventAchievementUnlocked is the type tag of unlock events.
const EventAchievementUnlocked = "achievement_unlocked"

// Event is a single message delivered to a learner's sockets.
type Event struct {
	Type        string             `json:"type"`
	ID          string             `json:"id"`
	UserID      string             `json:"user_id"`
	Achievement domain.Achievement `json:"achievement"`
}

// NewUnlockEvent builds an unlock event with a fresh ID.
func NewUnlockEvent(userID string, a domain.Achievement) Event {
	return Event{
		Type:        EventAchievementUnlocked,
		ID:          uuid.NewString(),
		UserID:      userID,
		Achievement: a,
	}
}
