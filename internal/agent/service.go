package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gabarita-ai/gabarita/internal/domain"
	"github.com/gabarita-ai/gabarita/internal/gemini"
)

var (
	// ErrInvalidRequest wraps every validation failure of a tutor request.
	ErrInvalidRequest = errors.New("invalid tutor request")
	// ErrTutorUnavailable is returned when the model could not produce a reply.
	ErrTutorUnavailable = errors.New("tutor unavailable")
)

const tutorTemperature = 0.7

// Service turns tutor requests into model calls.
type Service struct {
	processor Processor
}

// NewServiceWithProcessor creates a new tutor service with a custom processor.
func NewServiceWithProcessor(processor Processor) (*Service, error) {
	if processor == nil {
		return nil, errors.New("processor is required")
	}
	return &Service{
		processor: processor,
	}, nil
}

// Validate checks the request shape.
func (s *Service) Validate(req TutorRequest) error {
	if strings.TrimSpace(req.UserID) == "" {
		return fmt.Errorf("%w: userId is required", ErrInvalidRequest)
	}
	if err := req.History.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if req.Proactive() && !domain.SupportsProactive(req.Context.TutorContext) {
		return fmt.Errorf("%w: userMessage is required", ErrInvalidRequest)
	}
	return nil
}

// Reply validates req and returns the tutor's next message.
func (s *Service) Reply(ctx context.Context, req TutorRequest) (string, error) {
	if err := s.Validate(req); err != nil {
		return "", err
	}

	temp := tutorTemperature
	text, err := s.processor.Generate(ctx, gemini.Request{
		SystemInstruction: systemInstruction(req.Context.TutorContext),
		Contents:          buildContents(req),
		Temperature:       &temp,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTutorUnavailable, err)
	}
	return text, nil
}

// buildContents maps the transcript to model turns and appends the pending
// user message. Clients append the message to the history optimistically, so
// a trailing identical user turn is not repeated.
func buildContents(req TutorRequest) []gemini.Content {
	contents := make([]gemini.Content, 0, len(req.History)+1)
	for _, turn := range req.History {
		parts := make([]gemini.Part, 0, len(turn.Parts))
		for _, p := range turn.Parts {
			parts = append(parts, gemini.Part{Text: p.Text})
		}
		contents = append(contents, gemini.Content{Role: string(turn.Role), Parts: parts})
	}

	if req.Proactive() {
		return append(contents, gemini.Content{
			Role:  string(domain.RoleUser),
			Parts: []gemini.Part{{Text: openingInstruction(req.Context.TutorContext)}},
		})
	}

	if n := len(req.History); n > 0 {
		last := req.History[n-1]
		if last.Role == domain.RoleUser && last.Text() == req.UserMessage {
			return contents
		}
	}
	return append(contents, gemini.Content{
		Role:  string(domain.RoleUser),
		Parts: []gemini.Part{{Text: req.UserMessage}},
	})
}
