package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"mcqgen/internal/models"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SecureFilename reduces an uploaded filename to a flat ASCII name that is
// safe to join onto a directory. It returns "" when nothing usable is left.
func SecureFilename(name string) string {
	ascii, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn))), name)
	if err != nil {
		ascii = name
	}
	ascii = strings.NewReplacer("/", " ", "\\", " ").Replace(ascii)
	ascii = strings.Join(strings.Fields(ascii), "_")
	ascii = unsafeFilenameChars.ReplaceAllString(ascii, "")
	return strings.Trim(ascii, "._")
}

// DocumentService stores uploaded documents under the uploads directory.
type DocumentService struct {
	uploadDir string
	logger    zerolog.Logger
}

func NewDocumentService(uploadDir string, logger zerolog.Logger) *DocumentService {
	return &DocumentService{uploadDir: uploadDir, logger: logger}
}

// Store sanitizes original, checks its extension against the allow-list and
// copies src to the uploads directory, replacing any earlier upload with the
// same name.
func (s *DocumentService) Store(ctx context.Context, original string, src io.Reader) (*models.SourceDocument, error) {
	name := SecureFilename(original)
	if name == "" {
		return nil, fmt.Errorf("%w: unusable filename %q", ErrInvalidInput, original)
	}
	format, ok := models.DetectFormat(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not one of %s", ErrInvalidInput, original, strings.Join(models.AllowedExtensions(), ", "))
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure upload dir: %w", err)
	}

	storedPath := filepath.Join(s.uploadDir, name)
	out, err := os.Create(storedPath)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	written, err := io.Copy(out, src)
	if err != nil {
		out.Close()
		os.Remove(storedPath)
		return nil, fmt.Errorf("write file: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(storedPath)
		return nil, fmt.Errorf("close file: %w", err)
	}

	s.logger.Info().
		Str("original", original).
		Str("path", storedPath).
		Int64("bytes", written).
		Msg("stored upload")

	return &models.SourceDocument{
		Path:   storedPath,
		Name:   name,
		Format: format,
	}, nil
}

// FileSource reads a document that already exists on local disk.
type FileSource struct {
	Path string
}

func (f FileSource) Document(ctx context.Context) (*models.SourceDocument, error) {
	format, ok := models.DetectFormat(f.Path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f.Path)
	}
	info, err := os.Stat(f.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrInvalidInput, f.Path)
	}
	return &models.SourceDocument{
		Path:   f.Path,
		Name:   filepath.Base(f.Path),
		Format: format,
	}, nil
}
