package agent

import (
	"context"

	"github.com/gabarita-ai/gabarita/internal/gemini"
)

// Processor generates model replies.
// This interface is implemented by the Gemini client.
type Processor interface {
	Generate(ctx context.Context, req gemini.Request) (string, error)
}

// Ensure the Gemini client implements Processor.
var _ Processor = (*gemini.Client)(nil)
