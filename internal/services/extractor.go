package services

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"

	"mcqgen/internal/models"
)

// Extractor turns a source document into plain text.
type Extractor struct {
	logger zerolog.Logger
}

func NewExtractor(logger zerolog.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract reads the document at path according to format. Unsupported
// formats fail before any file is opened.
func (s *Extractor) Extract(ctx context.Context, path string, format models.Format) (string, error) {
	var (
		text string
		err  error
	)
	switch format {
	case models.FormatPDF:
		text, err = s.extractPDF(ctx, path)
	case models.FormatDOCX:
		text, err = extractDOCX(path)
	case models.FormatText:
		text, err = extractText(path)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return "", err
	}

	s.logger.Debug().
		Str("path", path).
		Str("format", string(format)).
		Int("chars", len(text)).
		Msg("extracted document text")
	return text, nil
}

// extractPDF reads the text of every page. The pdf reader panics on damaged
// cross-reference tables, so panics are turned into errors.
func (s *Extractor) extractPDF(ctx context.Context, path string) (_ string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("read pdf: %v", rec)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var builder strings.Builder
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			s.logger.Debug().Err(err).Int("page", i).Str("path", path).Msg("skipping unreadable pdf page")
			continue
		}
		if text == "" {
			continue
		}
		builder.WriteString(text)
	}
	return builder.String(), nil
}

func extractText(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read text file: %w", err)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("read text file: %s is not valid UTF-8", path)
	}
	return string(raw), nil
}

const docxBodyPart = "word/document.xml"

func extractDOCX(path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer archive.Close()

	for _, file := range archive.File {
		if file.Name != docxBodyPart {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", docxBodyPart, err)
		}
		defer rc.Close()

		paragraphs, err := docxParagraphs(rc)
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", docxBodyPart, err)
		}
		return strings.Join(paragraphs, " "), nil
	}
	return "", fmt.Errorf("open docx: missing %s", docxBodyPart)
}

// docxParagraphs returns the text of each paragraph that sits directly in
// the document body, in order. Paragraphs nested in tables, text boxes or
// other containers are not body paragraphs and are left out.
func docxParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		paragraphs []string
		stack      []string
		current    strings.Builder
		inBodyPara bool
		inText     bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if name == "p" && len(stack) > 0 && stack[len(stack)-1] == "body" {
				inBodyPara = true
				current.Reset()
			}
			if inBodyPara {
				switch name {
				case "t":
					inText = true
				case "tab":
					current.WriteByte('\t')
				case "br", "cr":
					current.WriteByte('\n')
				}
			}
			stack = append(stack, name)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if inBodyPara && len(stack) > 0 && stack[len(stack)-1] == "body" {
					paragraphs = append(paragraphs, current.String())
					inBodyPara = false
				}
			}
		case xml.CharData:
			if inBodyPara && inText {
				current.Write(t)
			}
		}
	}
	return paragraphs, nil
}
