package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Role identifies who authored a chat turn.
type Role string

const (
	// RoleUser marks a learner-authored turn.
	RoleUser Role = "user"
	// RoleModel marks a tutor-authored turn.
	RoleModel Role = "model"
)

// ErrLeadingModelTurn is returned when a transcript sent to the tutor starts with a model turn.
var ErrLeadingModelTurn = errors.New("history must start with a user turn")

// Part is a single text fragment of a turn.
type Part struct {
	Text string `json:"text"`
}

// ChatTurn is one utterance in a conversation.
type ChatTurn struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// NewTurn builds a single-part turn.
func NewTurn(role Role, text string) ChatTurn {
	return ChatTurn{Role: role, Parts: []Part{{Text: text}}}
}

// Text joins all parts of the turn.
func (t ChatTurn) Text() string {
	if len(t.Parts) == 1 {
		return t.Parts[0].Text
	}
	texts := make([]string, 0, len(t.Parts))
	for _, p := range t.Parts {
		texts = append(texts, p.Text)
	}
	return strings.Join(texts, "")
}

// History is an ordered conversation transcript, oldest first.
type History []ChatTurn

// Clone returns a deep copy so callers can never alias stored turns.
func (h History) Clone() History {
	if h == nil {
		return nil
	}
	out := make(History, len(h))
	for i, t := range h {
		parts := make([]Part, len(t.Parts))
		copy(parts, t.Parts)
		out[i] = ChatTurn{Role: t.Role, Parts: parts}
	}
	return out
}

// ForTransmission returns the transcript as it must be sent to the tutor
// endpoint: a leading model turn is dropped. The receiver is not modified.
func (h History) ForTransmission() History {
	out := h.Clone()
	if len(out) > 0 && out[0].Role == RoleModel {
		out = out[1:]
	}
	if out == nil {
		out = History{}
	}
	return out
}

// Validate checks roles and the leading-turn rule.
func (h History) Validate() error {
	for i, t := range h {
		if t.Role != RoleUser && t.Role != RoleModel {
			return fmt.Errorf("turn %d: unknown role %q", i, t.Role)
		}
	}
	if len(h) > 0 && h[0].Role != RoleUser {
		return ErrLeadingModelTurn
	}
	return nil
}
