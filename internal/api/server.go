package api

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"mcqgen/internal/models"
	"mcqgen/internal/services"
)

const maxMultipartMemory = 8 << 20 // 8 MB

//go:embed templates/*.html
var templateFS embed.FS

var (
	errNoFile   = fmt.Errorf("%w: no file uploaded", services.ErrInvalidInput)
	errBadCount = fmt.Errorf("%w: %w", services.ErrInvalidInput, services.ErrQuestionCount)
)

type Server struct {
	mux        *http.ServeMux
	pipeline   *services.Pipeline
	documents  *services.DocumentService
	resultsDir string
	pages      *template.Template
	logger     zerolog.Logger
}

func NewServer(
	pipeline *services.Pipeline,
	documents *services.DocumentService,
	resultsDir string,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		mux:        http.NewServeMux(),
		pipeline:   pipeline,
		documents:  documents,
		resultsDir: resultsDir,
		pages:      template.Must(template.ParseFS(templateFS, "templates/*.html")),
		logger:     logger,
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/generate", s.handleGenerate)
	s.mux.HandleFunc("/download/", s.handleDownload)
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/generate", s.handleAPIGenerate)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w, http.MethodGet, http.MethodHead)
		return
	}
	s.renderPage(w, http.StatusOK, "index.html", indexPage{
		Extensions: models.AllowedExtensions(),
	})
}

// handleGenerate serves the upload form submission and answers with the
// results page. Failures are reported as short plain-text messages.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	src, numQuestions, cleanup, err := s.parseUpload(r)
	defer cleanup()
	if err == nil {
		_, err = s.pipeline.Run(r.Context(), src, numQuestions, &pageSink{w: w, server: s})
	}
	if err != nil {
		status, message := describeError(err)
		s.logRequestError(r, status, err)
		http.Error(w, message, status)
	}
}

// handleAPIGenerate is the JSON flavour of handleGenerate.
func (s *Server) handleAPIGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	src, numQuestions, cleanup, err := s.parseUpload(r)
	defer cleanup()
	if err == nil {
		_, err = s.pipeline.Run(r.Context(), src, numQuestions, &jsonSink{w: w})
	}
	if err != nil {
		status, _ := describeError(err)
		s.logRequestError(r, status, err)
		writeError(w, status, err.Error())
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w, http.MethodGet, http.MethodHead)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/download/")
	if !isPlainFileName(name) {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	path := filepath.Join(s.resultsDir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}

	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeFile(w, r, path)
}

// parseUpload reads the multipart form. cleanup is always safe to call.
func (s *Server) parseUpload(r *http.Request) (services.DocumentSource, int, func(), error) {
	noop := func() {}
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return nil, 0, noop, errNoFile
	}
	form := r.MultipartForm
	cleanup := func() { _ = form.RemoveAll() }

	files := form.File["file"]
	if len(files) == 0 || files[0].Filename == "" {
		return nil, 0, cleanup, errNoFile
	}

	raw := strings.TrimSpace(r.FormValue("num_questions"))
	numQuestions, err := strconv.Atoi(raw)
	if err != nil {
		return nil, 0, cleanup, fmt.Errorf("%w: %q is not a number", errBadCount, raw)
	}

	return &UploadSource{documents: s.documents, file: files[0]}, numQuestions, cleanup, nil
}

func (s *Server) renderPage(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.pages.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error().Err(err).Str("template", name).Msg("render page")
	}
}

func (s *Server) logRequestError(r *http.Request, status int, err error) {
	evt := s.logger.Warn()
	if status >= http.StatusInternalServerError {
		evt = s.logger.Error()
	}
	evt.Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
}

// UploadSource stores a multipart upload through the DocumentService.
type UploadSource struct {
	documents *services.DocumentService
	file      *multipart.FileHeader
}

func (u *UploadSource) Document(ctx context.Context) (*models.SourceDocument, error) {
	src, err := u.file.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open upload %s: %v", services.ErrInvalidInput, u.file.Filename, err)
	}
	defer src.Close()
	return u.documents.Store(ctx, u.file.Filename, src)
}

type indexPage struct {
	Extensions []string
}

type resultsPage struct {
	MCQs        string
	TxtFilename string
	PDFFilename string
	Blocks      int
	Pages       int
	Failed      bool
	Reason      string
}

type pageSink struct {
	w      http.ResponseWriter
	server *Server
}

func (p *pageSink) Deliver(ctx context.Context, run *models.Run) error {
	p.server.renderPage(p.w, http.StatusOK, "results.html", resultsPage{
		MCQs:        run.Result.Text,
		TxtFilename: run.Artifacts.TextFile,
		PDFFilename: run.Artifacts.PDFFile,
		Blocks:      run.Artifacts.Blocks,
		Pages:       run.Artifacts.Pages,
		Failed:      !run.Result.OK(),
		Reason:      run.Result.Reason,
	})
	return nil
}

// GenerateResponse is the JSON body returned by /api/generate.
type GenerateResponse struct {
	RunID   string `json:"runId"`
	MCQs    string `json:"mcqs"`
	TxtFile string `json:"txtFile"`
	PDFFile string `json:"pdfFile"`
	Blocks  int    `json:"blocks"`
	Pages   int    `json:"pages"`
	OK      bool   `json:"ok"`
	Reason  string `json:"reason,omitempty"`
}

type jsonSink struct {
	w http.ResponseWriter
}

func (j *jsonSink) Deliver(ctx context.Context, run *models.Run) error {
	writeJSON(j.w, http.StatusOK, GenerateResponse{
		RunID:   run.ID,
		MCQs:    run.Result.Text,
		TxtFile: run.Artifacts.TextFile,
		PDFFile: run.Artifacts.PDFFile,
		Blocks:  run.Artifacts.Blocks,
		Pages:   run.Artifacts.Pages,
		OK:      run.Result.OK(),
		Reason:  run.Result.Reason,
	})
	return nil
}

// describeError maps pipeline errors to an HTTP status and a short message
// for the HTML flow.
func describeError(err error) (int, string) {
	switch {
	case errors.Is(err, errNoFile):
		return http.StatusBadRequest, "No file uploaded."
	case errors.Is(err, services.ErrQuestionCount):
		return http.StatusBadRequest, "Invalid number of questions."
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrUnsupportedFormat):
		return http.StatusBadRequest, "Invalid file format or upload error."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Request timed out."
	case errors.Is(err, services.ErrExtractionFailed):
		return http.StatusUnprocessableEntity, "Could not read the uploaded document."
	case errors.Is(err, services.ErrNoTextExtracted):
		return http.StatusUnprocessableEntity, "No text extracted."
	case errors.Is(err, services.ErrGenerationFailed):
		return http.StatusBadGateway, "MCQ generation failed. Please try again later."
	default:
		return http.StatusInternalServerError, "Internal error."
	}
}

func isPlainFileName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
