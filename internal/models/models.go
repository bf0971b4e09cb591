package models

import (
	"path/filepath"
	"strings"
	"time"
)

type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatText Format = "text"
)

// DetectFormat maps a filename extension to a Format. ok is false for
// anything outside the allow-list.
func DetectFormat(name string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return FormatPDF, true
	case ".docx":
		return FormatDOCX, true
	case ".txt":
		return FormatText, true
	default:
		return "", false
	}
}

// AllowedExtensions lists the upload extensions accepted by the intake.
func AllowedExtensions() []string {
	return []string{"pdf", "txt", "docx"}
}

// SourceDocument is a document as read by the extractor.
type SourceDocument struct {
	Path   string `validate:"required"`
	Name   string `validate:"required"`
	Format Format `validate:"oneof=pdf docx text"`
}

// BaseName is the document name with its final extension removed.
func (d SourceDocument) BaseName() string {
	name := filepath.Base(d.Name)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

type GenerationRequest struct {
	Document     SourceDocument
	NumQuestions int `validate:"gte=1"`
}

// GenerationResult is either a success carrying the model text or a failure
// carrying a reason. The zero value is a failure with no reason.
type GenerationResult struct {
	Text   string
	Reason string
	ok     bool
}

func Success(text string) GenerationResult {
	return GenerationResult{Text: text, ok: true}
}

func Failure(reason string) GenerationResult {
	if strings.TrimSpace(reason) == "" {
		reason = "unknown error"
	}
	return GenerationResult{Reason: reason}
}

func (r GenerationResult) OK() bool {
	return r.ok
}

// OutputArtifacts describes the two files written for one run.
type OutputArtifacts struct {
	TextPath string
	PDFPath  string
	TextFile string
	PDFFile  string
	Blocks   int
	Pages    int
}

// Run captures one pass of the pipeline for a single document.
type Run struct {
	ID        string
	Request   GenerationRequest
	Result    GenerationResult
	Artifacts *OutputArtifacts
	StartedAt time.Time
	Duration  time.Duration
}
