package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gabarita-ai/gabarita/internal/gemini"
)

// Process types accepted by ProcessContent.
const (
	ProcessExtract  = "extract"
	ProcessGenerate = "generate"
)

var (
	// ErrInvalidContent wraps request validation failures.
	ErrInvalidContent = errors.New("invalid content request")
	// ErrUnparseableOutput is returned when the model did not answer with JSON.
	ErrUnparseableOutput = errors.New("model returned unparseable output")
)

// Generator is satisfied by *gemini.Client.
type Generator interface {
	Generate(ctx context.Context, req gemini.Request) (string, error)
}

// ContentRequest is the body of POST /api/process-content.
type ContentRequest struct {
	Content     string `json:"content"`
	IsImage     bool   `json:"isImage"`
	ProcessType string `json:"processType"`
}

// ParseError carries the raw model output that failed to decode.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("%v: %v", ErrUnparseableOutput, e.Err) }
func (e *ParseError) Unwrap() error { return ErrUnparseableOutput }

const extractionSchema = `Responda APENAS com um JSON válido, sem texto adicional, no formato:
{"questions":[{"statement":"...","alternatives":[{"letter":"A","text":"..."}],"correctAnswer":"A","explanation":"...","subject":"...","topic":"...","difficulty":"facil|media|dificil"}]}
Use "correctAnswer": null quando o gabarito não estiver disponível.`

var processPrompts = map[string]string{
	ProcessExtract: `Você é um assistente que digitaliza provas de vestibular e concursos.
Extraia todas as questões de múltipla escolha do material a seguir, preservando o enunciado e as alternativas exatamente como aparecem.
` + extractionSchema,
	ProcessGenerate: `Você é um professor que cria questões de vestibular.
Com base no material de estudo a seguir, crie de 5 a 10 questões inéditas de múltipla escolha, com cinco alternativas (A a E) e uma explicação da resposta.
` + extractionSchema,
}

// ProcessContent sends the material to the model with the prompt for
// req.ProcessType and returns the decoded JSON structure.
func ProcessContent(ctx context.Context, gen Generator, req ContentRequest) (map[string]any, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidContent)
	}
	processType := req.ProcessType
	if processType == "" {
		processType = ProcessExtract
	}
	prompt, ok := processPrompts[processType]
	if !ok {
		return nil, fmt.Errorf("%w: unknown processType %q", ErrInvalidContent, req.ProcessType)
	}

	parts := []gemini.Part{{Text: prompt}}
	if req.IsImage {
		mime, data := splitDataURL(req.Content)
		parts = append(parts, gemini.Part{InlineData: &gemini.InlineData{MimeType: mime, Data: data}})
	} else {
		parts = append(parts, gemini.Part{Text: "Material:\n" + req.Content})
	}

	temp := 0.2
	raw, err := gen.Generate(ctx, gemini.Request{
		Contents:    []gemini.Content{{Role: "user", Parts: parts}},
		JSON:        true,
		Temperature: &temp,
	})
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &out); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}
	return out, nil
}

// splitDataURL separates "data:<mime>;base64,<payload>". Bare base64 is
// assumed to be JPEG.
func splitDataURL(s string) (mime, data string) {
	if !strings.HasPrefix(s, "data:") {
		return "image/jpeg", s
	}
	header, payload, ok := strings.Cut(s, ",")
	if !ok {
		return "image/jpeg", s
	}
	mime = strings.TrimPrefix(header, "data:")
	mime, _, _ = strings.Cut(mime, ";")
	if mime == "" {
		mime = "image/jpeg"
	}
	return mime, payload
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
