package ingest

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gabarita-ai/gabarita/internal/api"
)

// Handler serves the upload endpoints.
type Handler struct {
	gen            Generator
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewHandler creates an ingest handler. gen may be nil, in which case content
// processing answers 503.
func NewHandler(gen Generator, maxUploadBytes int64, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &Handler{gen: gen, maxUploadBytes: maxUploadBytes, logger: logger}
}

type errorWithSuggestion struct {
	Error      string `json:"error"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ExtractPDF handles POST /api/extract-pdf. The document is read from the
// "file" form part, falling back to "pdf".
func (h *Handler) ExtractPDF(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.JSON(w, http.StatusRequestEntityTooLarge, errorWithSuggestion{
				Error:      "Arquivo muito grande",
				Suggestion: "Divida o PDF em partes menores e envie novamente.",
			})
			return
		}
		api.JSON(w, http.StatusBadRequest, errorWithSuggestion{
			Error:      "Requisição inválida",
			Suggestion: "Envie o PDF como multipart/form-data no campo 'file'.",
		})
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := formFile(r, "file", "pdf")
	if err != nil {
		api.JSON(w, http.StatusBadRequest, errorWithSuggestion{
			Error:      "Nenhum arquivo PDF enviado",
			Suggestion: "Selecione um arquivo PDF e tente novamente.",
		})
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("Failed to read uploaded PDF", "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to read upload")
		return
	}

	text, err := ExtractPDFText(data)
	switch {
	case errors.Is(err, ErrNotPDF):
		api.JSON(w, http.StatusBadRequest, errorWithSuggestion{
			Error:      "O arquivo enviado não é um PDF",
			Suggestion: "Verifique a extensão do arquivo e envie um PDF válido.",
		})
		return
	case errors.Is(err, ErrNoText):
		api.JSON(w, http.StatusUnprocessableEntity, errorWithSuggestion{
			Error:      "Não foi possível extrair texto do PDF",
			Suggestion: "O PDF parece ser digitalizado. Envie as páginas como imagem para extração com IA.",
		})
		return
	case err != nil:
		h.logger.Warn("PDF extraction failed", "filename", header.Filename, "error", err)
		api.JSON(w, http.StatusUnprocessableEntity, errorWithSuggestion{
			Error:      "Falha ao ler o PDF",
			Suggestion: "O arquivo pode estar corrompido ou protegido por senha. Tente exportá-lo novamente.",
		})
		return
	}

	h.logger.Info("PDF text extracted", "filename", header.Filename, "bytes", len(data), "chars", len(text))
	api.JSON(w, http.StatusOK, map[string]string{"extractedText": text})
}

func formFile(r *http.Request, names ...string) (multipart.File, *multipart.FileHeader, error) {
	var lastErr error
	for _, name := range names {
		f, h, err := r.FormFile(name)
		if err == nil {
			return f, h, nil
		}
		lastErr = err
	}
	return nil, nil, lastErr
}

// ProcessContent handles POST /api/process-content.
func (h *Handler) ProcessContent(w http.ResponseWriter, r *http.Request) {
	if h.gen == nil {
		api.Error(w, http.StatusServiceUnavailable, "AI processing is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	var req ContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	out, err := ProcessContent(r.Context(), h.gen, req)
	if err != nil {
		var parseErr *ParseError
		switch {
		case errors.Is(err, ErrInvalidContent):
			api.Error(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &parseErr):
			h.logger.Error("Unparseable model output", "error", parseErr.Err, "raw_response", parseErr.Raw)
			api.Error(w, http.StatusBadGateway, "Erro ao processar o conteúdo")
		default:
			h.logger.Error("Content processing failed", "error", err)
			api.Error(w, http.StatusBadGateway, "Erro ao processar o conteúdo")
		}
		return
	}
	api.JSON(w, http.StatusOK, out)
}

// RegisterRoutes registers the upload endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/extract-pdf", h.ExtractPDF)
	r.Post("/api/process-content", h.ProcessContent)
}
