package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabarita-ai/gabarita/internal/gemini"
)

type fakeGenerator struct {
	out  string
	err  error
	last gemini.Request
}

func (g *fakeGenerator) Generate(_ context.Context, req gemini.Request) (string, error) {
	g.last = req
	return g.out, g.err
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var got map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	return got
}

func TestExtractPDFRejectsNonPDF(t *testing.T) {
	t.Parallel()

	h := NewHandler(nil, 1<<20, nil)
	body, ct := multipartBody(t, "pdf", "notes.txt", []byte("hello"))
	req := httptest.NewRequest(http.MethodPost, "/api/extract-pdf", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()

	h.ExtractPDF(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, "O arquivo enviado não é um PDF", got["error"])
	assert.NotEmpty(t, got["suggestion"])
}

func TestExtractPDFMissingFile(t *testing.T) {
	t.Parallel()

	h := NewHandler(nil, 1<<20, nil)
	body, ct := multipartBody(t, "other", "x.pdf", []byte("%PDF-1.4"))
	req := httptest.NewRequest(http.MethodPost, "/api/extract-pdf", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()

	h.ExtractPDF(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Nenhum arquivo PDF enviado", decodeBody(t, rec)["error"])
}

func TestExtractPDFTextCorruptDocument(t *testing.T) {
	t.Parallel()

	_, err := ExtractPDFText([]byte("%PDF-1.4\ngarbage without xref"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotPDF, "a PDF header must reach the parser")
}

func TestNormalizeWhitespace(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Questão 1\n\nA) 2", normalizeWhitespace("  Questão 1 \r\n\r\n\r\n\r\nA)\t\t2   "))
}

func TestProcessContentParsesFencedJSON(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{out: "```json\n{\"questions\":[{\"statement\":\"2+2?\"}]}\n```"}
	out, err := ProcessContent(context.Background(), gen, ContentRequest{Content: "texto"})
	require.NoError(t, err)
	qs, ok := out["questions"].([]any)
	require.True(t, ok, "unexpected output %v", out)
	assert.Len(t, qs, 1)
	assert.True(t, gen.last.JSON, "JSON response mode")
	assert.Contains(t, gen.last.Contents[0].Parts[0].Text, "Extraia", "extraction prompt by default")
}

func TestProcessContentSendsImagesInline(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{out: `{"questions":[]}`}
	_, err := ProcessContent(context.Background(), gen, ContentRequest{
		Content:     "data:image/png;base64,AAAA",
		IsImage:     true,
		ProcessType: ProcessGenerate,
	})
	require.NoError(t, err)
	require.Len(t, gen.last.Contents[0].Parts, 2)
	part := gen.last.Contents[0].Parts[1]
	require.NotNil(t, part.InlineData)
	assert.Equal(t, "image/png", part.InlineData.MimeType)
	assert.Equal(t, "AAAA", part.InlineData.Data)
}

func TestProcessContentHandlerErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		gen  Generator
		body string
		want int
	}{
		{name: "ai disabled", gen: nil, body: `{"content":"x"}`, want: http.StatusServiceUnavailable},
		{name: "empty content", gen: &fakeGenerator{}, body: `{"content":""}`, want: http.StatusBadRequest},
		{name: "unknown type", gen: &fakeGenerator{}, body: `{"content":"x","processType":"poem"}`, want: http.StatusBadRequest},
		{name: "unparseable", gen: &fakeGenerator{out: "desculpe, não consegui"}, body: `{"content":"x"}`, want: http.StatusBadGateway},
		{name: "provider error", gen: &fakeGenerator{err: errors.New("down")}, body: `{"content":"x"}`, want: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := NewHandler(tt.gen, 1<<20, nil)
			req := httptest.NewRequest(http.MethodPost, "/api/process-content", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ProcessContent(rec, req)
			require.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.NotNil(t, decodeBody(t, rec)["error"])
		})
	}
}
