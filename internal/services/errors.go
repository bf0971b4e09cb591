package services

import "errors"

var (
	// ErrInvalidInput covers missing files, disallowed extensions and bad question counts.
	ErrInvalidInput = errors.New("invalid input")
	// ErrQuestionCount marks an out-of-range question count. It is always
	// wrapped together with ErrInvalidInput.
	ErrQuestionCount = errors.New("invalid number of questions")
	// ErrUnsupportedFormat is returned by the extractor for formats it cannot read.
	ErrUnsupportedFormat = errors.New("unsupported file type")
	// ErrExtractionFailed wraps read and parse errors from the extractor.
	ErrExtractionFailed = errors.New("text extraction failed")
	// ErrNoTextExtracted is returned when a document yields no usable text.
	ErrNoTextExtracted = errors.New("no text extracted")
	// ErrGenerationFailed is returned when the completion endpoint produced no MCQs.
	ErrGenerationFailed = errors.New("mcq generation failed")
)
