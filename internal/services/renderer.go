package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog"

	"mcqgen/internal/models"
)

const (
	outputPrefix = "generated_mcqs_"

	pdfFont       = "Arial"
	pdfFontSize   = 12
	pdfLineH      = 10
	pdfBlockGap   = 5
	pdfPageMargin = 10
)

// OutputFileNames returns the text and PDF file names for a base name.
func OutputFileNames(baseName string) (txt, pdf string) {
	return outputPrefix + baseName + ".txt", outputPrefix + baseName + ".pdf"
}

// SplitBlocks splits model output on the MCQ delimiter and returns the
// trimmed, non-blank segments in order.
func SplitBlocks(text string) []string {
	var blocks []string
	for _, segment := range strings.Split(text, MCQDelimiter) {
		if trimmed := strings.TrimSpace(segment); trimmed != "" {
			blocks = append(blocks, trimmed)
		}
	}
	return blocks
}

// Renderer writes generated MCQs to the results directory.
type Renderer struct {
	resultsDir string
	logger     zerolog.Logger
}

func NewRenderer(resultsDir string, logger zerolog.Logger) *Renderer {
	return &Renderer{resultsDir: resultsDir, logger: logger}
}

func (s *Renderer) ResultsDir() string {
	return s.resultsDir
}

// Render writes text verbatim to a .txt file and one paragraph per MCQ
// block to a .pdf file. Existing files with the same names are replaced.
func (s *Renderer) Render(text, baseName string) (*models.OutputArtifacts, error) {
	if err := os.MkdirAll(s.resultsDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure results dir: %w", err)
	}

	txtFile, pdfFile := OutputFileNames(baseName)
	artifacts := &models.OutputArtifacts{
		TextFile: txtFile,
		PDFFile:  pdfFile,
		TextPath: filepath.Join(s.resultsDir, txtFile),
		PDFPath:  filepath.Join(s.resultsDir, pdfFile),
	}

	if err := os.WriteFile(artifacts.TextPath, []byte(text), 0o644); err != nil {
		return nil, fmt.Errorf("write mcq text: %w", err)
	}
	s.logger.Info().Str("path", artifacts.TextPath).Msg("saved mcq text")

	blocks, err := writeMCQPDF(artifacts.PDFPath, text)
	if err != nil {
		return nil, err
	}
	artifacts.Blocks = blocks

	pages, err := api.PageCountFile(artifacts.PDFPath)
	if err != nil {
		return nil, fmt.Errorf("count pdf pages: %w", err)
	}
	artifacts.Pages = pages

	s.logger.Info().
		Str("path", artifacts.PDFPath).
		Int("blocks", blocks).
		Int("pages", pages).
		Msg("saved mcq pdf")
	return artifacts, nil
}

func writeMCQPDF(path, text string) (int, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(pdfPageMargin, pdfPageMargin, pdfPageMargin)
	doc.SetAutoPageBreak(true, pdfPageMargin)
	doc.AddPage()
	doc.SetFont(pdfFont, "", pdfFontSize)

	// Core fonts only cover cp1252; other runes are substituted.
	tr := doc.UnicodeTranslatorFromDescriptor("")

	blocks := SplitBlocks(text)
	for _, block := range blocks {
		doc.MultiCell(0, pdfLineH, tr(block), "", "", false)
		doc.Ln(pdfBlockGap)
	}

	if err := doc.OutputFileAndClose(path); err != nil {
		return 0, fmt.Errorf("write mcq pdf: %w", err)
	}
	return len(blocks), nil
}
