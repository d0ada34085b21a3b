// Package agent implements the AI tutor endpoint.
package agent

import (
	"github.com/gabarita-ai/gabarita/internal/domain"
)

// TutorRequest is the body of POST /api/tutor.
type TutorRequest struct {
	History     domain.History     `json:"history"`
	UserID      string             `json:"userId"`
	Context     domain.WireContext `json:"context"`
	UserMessage string             `json:"userMessage"`
	SessionID   string             `json:"-"`
}

// Proactive reports whether the tutor should open the conversation itself.
func (r TutorRequest) Proactive() bool {
	return r.UserMessage == ""
}

// TutorResponse is the body of a successful tutor reply.
type TutorResponse struct {
	Message string `json:"message"`
}
