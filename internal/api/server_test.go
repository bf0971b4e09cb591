package api

import (
	"bytes"
	"context"
	"errors"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcqgen/internal/services"
)

const mockedMCQ = "## MCQ\nQuestion: Q1 ... Correct Answer: A"

type testEnv struct {
	server     *Server
	uploadDir  string
	resultsDir string
}

func newTestEnv(t *testing.T, status int, content string) *testEnv {
	t.Helper()

	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": content}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"model":   "deepseek-chat",
			"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": content}}},
		})
	}))
	t.Cleanup(llm.Close)

	uploadDir, resultsDir := t.TempDir(), t.TempDir()
	logger := zerolog.Nop()
	completion := services.NewCompletionService(services.CompletionConfig{
		APIKey:   "test-key",
		Endpoint: llm.URL,
		Model:    "deepseek-chat",
		Timeout:  5 * time.Second,
	}, logger)
	pipeline := services.NewPipeline(
		services.NewExtractor(logger),
		completion,
		services.NewRenderer(resultsDir, logger),
		services.PipelineOptions{MaxQuestions: 20},
		logger,
	)

	return &testEnv{
		server:     NewServer(pipeline, services.NewDocumentService(uploadDir, logger), resultsDir, logger),
		uploadDir:  uploadDir,
		resultsDir: resultsDir,
	}
}

func multipartUpload(t *testing.T, filename, content, numQuestions string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.WriteField("num_questions", numQuestions))
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func (e *testEnv) do(t *testing.T, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, body)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, mockedMCQ)

	rec := env.do(t, http.MethodGet, "/api/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/health", nil, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET", rec.Header().Get("Allow"))
}

func TestIndex(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, mockedMCQ)

	rec := env.do(t, http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="num_questions"`)
	assert.Contains(t, rec.Body.String(), ".pdf, .txt, .docx")

	rec = env.do(t, http.MethodGet, "/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerateResultsPage(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, mockedMCQ)
	body, ct := multipartUpload(t, "hello world.txt", "hello world", "1")

	rec := env.do(t, http.MethodPost, "/generate", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	page := rec.Body.String()
	assert.Contains(t, page, "Question: Q1 ... Correct Answer: A")
	assert.Contains(t, page, "/download/generated_mcqs_hello_world.txt")
	assert.Contains(t, page, "/download/generated_mcqs_hello_world.pdf")

	assert.FileExists(t, filepath.Join(env.uploadDir, "hello_world.txt"))
	raw, err := os.ReadFile(filepath.Join(env.resultsDir, "generated_mcqs_hello_world.txt"))
	require.NoError(t, err)
	assert.Equal(t, mockedMCQ, string(raw))
}

func TestGenerateRejections(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		count    string
		status   int
		message  string
	}{
		{"no file", "", "", "3", http.StatusBadRequest, "No file uploaded."},
		{"bad extension", "slides.pptx", "x", "3", http.StatusBadRequest, "Invalid file format or upload error."},
		{"missing count", "notes.txt", "hello", "", http.StatusBadRequest, "Invalid number of questions."},
		{"zero count", "notes.txt", "hello", "0", http.StatusBadRequest, "Invalid number of questions."},
		{"count over cap", "notes.txt", "hello", "21", http.StatusBadRequest, "Invalid number of questions."},
		{"empty document", "blank.txt", "  \n", "3", http.StatusUnprocessableEntity, "No text extracted."},
		{"corrupt docx", "broken.docx", "not a zip", "3", http.StatusUnprocessableEntity, "Could not read the uploaded document."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, http.StatusOK, mockedMCQ)
			body, ct := multipartUpload(t, tt.filename, tt.content, tt.count)

			rec := env.do(t, http.MethodPost, "/generate", body, ct)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.message)

			entries, err := os.ReadDir(env.resultsDir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestGenerateRemoteFailure(t *testing.T) {
	env := newTestEnv(t, http.StatusInternalServerError, "upstream exploded")
	body, ct := multipartUpload(t, "notes.txt", "hello world", "2")

	rec := env.do(t, http.MethodPost, "/generate", body, ct)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	entries, err := os.ReadDir(env.resultsDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGenerateMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, mockedMCQ)
	rec := env.do(t, http.MethodGet, "/generate", nil, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAPIGenerate(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, mockedMCQ)
	body, ct := multipartUpload(t, "notes.txt", "hello world", "1")

	rec := env.do(t, http.MethodPost, "/api/generate", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RunID)
	assert.True(t, resp.OK)
	assert.Equal(t, mockedMCQ, resp.MCQs)
	assert.Equal(t, "generated_mcqs_notes.txt", resp.TxtFile)
	assert.Equal(t, "generated_mcqs_notes.pdf", resp.PDFFile)
	assert.Equal(t, 1, resp.Blocks)
	assert.Equal(t, 1, resp.Pages)
}

func TestAPIGenerateError(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, mockedMCQ)
	body, ct := multipartUpload(t, "notes.txt", "", "1")

	rec := env.do(t, http.MethodPost, "/api/generate", body, ct)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "no text extracted")
}

func TestDownload(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, mockedMCQ)
	require.NoError(t, os.WriteFile(filepath.Join(env.resultsDir, "generated_mcqs_x.txt"), []byte(mockedMCQ), 0o644))

	rec := env.do(t, http.MethodGet, "/download/generated_mcqs_x.txt", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, mockedMCQ, rec.Body.String())
	assert.Equal(t, `attachment; filename=generated_mcqs_x.txt`, rec.Header().Get("Content-Disposition"))

	rec = env.do(t, http.MethodGet, "/download/missing.pdf", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/download/", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, `/download/..%5Csecret.txt`, nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIsPlainFileName(t *testing.T) {
	assert.True(t, isPlainFileName("generated_mcqs_a.pdf"))
	for _, name := range []string{"", ".", "..", "../etc/passwd", `a\b.txt`, "dir/file.txt"} {
		assert.False(t, isPlainFileName(name), name)
	}
}

func corruptPDF(t *testing.T) string {
	t.Helper()
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetFont("Helvetica", "", 12)
	doc.AddPage()
	doc.Cell(40, 10, "Alpha")
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	xref := regexp.MustCompile(`(?m)^\d{10} 00000 n`)
	return string(xref.ReplaceAll(buf.Bytes(), []byte("0000000009 00000 n")))
}

func TestGenerateCorruptPDF(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, mockedMCQ)
	body, ct := multipartUpload(t, "broken.pdf", corruptPDF(t), "2")

	rec := env.do(t, http.MethodPost, "/generate", body, ct)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Could not read the uploaded document.")
}

func TestDescribeError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"no file", errNoFile, http.StatusBadRequest},
		{"bad count", errBadCount, http.StatusBadRequest},
		{"extraction", fmt.Errorf("%w: a.pdf: %w", services.ErrExtractionFailed, errors.New("bad xref")), http.StatusUnprocessableEntity},
		{"extraction deadline", fmt.Errorf("%w: a.pdf: %w", services.ErrExtractionFailed, context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"extraction canceled", fmt.Errorf("%w: a.pdf: %w", services.ErrExtractionFailed, context.Canceled), http.StatusGatewayTimeout},
		{"no text", services.ErrNoTextExtracted, http.StatusUnprocessableEntity},
		{"generation", services.ErrGenerationFailed, http.StatusBadGateway},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := describeError(tt.err)
			assert.Equal(t, tt.status, status)
		})
	}
}
