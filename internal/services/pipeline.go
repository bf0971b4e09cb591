package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mcqgen/internal/models"
)

// ProgressCallback is called as a run moves through its steps.
type ProgressCallback func(step, message string, current, total int)

// DocumentSource yields the document a run works on.
type DocumentSource interface {
	Document(ctx context.Context) (*models.SourceDocument, error)
}

// ResultSink receives a finished run.
type ResultSink interface {
	Deliver(ctx context.Context, run *models.Run) error
}

type PipelineOptions struct {
	// MaxQuestions caps the requested question count. Zero means no cap.
	MaxQuestions int
	// RenderOnFailure writes (empty) output files even when the completion
	// endpoint failed, and reports the failed run instead of an error.
	RenderOnFailure bool
}

// Pipeline coordinates extraction, prompting, completion and rendering for
// one document at a time.
type Pipeline struct {
	extractor *Extractor
	completer Completer
	renderer  *Renderer
	validate  *validator.Validate
	opts      PipelineOptions
	logger    zerolog.Logger
}

func NewPipeline(
	extractor *Extractor,
	completer Completer,
	renderer *Renderer,
	opts PipelineOptions,
	logger zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		completer: completer,
		renderer:  renderer,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		opts:      opts,
		logger:    logger,
	}
}

func (p *Pipeline) Run(ctx context.Context, src DocumentSource, numQuestions int, sink ResultSink) (*models.Run, error) {
	return p.RunWithProgress(ctx, src, numQuestions, sink, nil)
}

func (p *Pipeline) RunWithProgress(ctx context.Context, src DocumentSource, numQuestions int, sink ResultSink, progress ProgressCallback) (*models.Run, error) {
	if progress == nil {
		progress = func(string, string, int, int) {}
	}

	run := &models.Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	logger := p.logger.With().Str("run_id", run.ID).Logger()

	doc, err := src.Document(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("rejected document")
		return run, err
	}
	run.Request = models.GenerationRequest{Document: *doc, NumQuestions: numQuestions}
	if err := p.validateRequest(run.Request); err != nil {
		logger.Warn().Err(err).Int("num_questions", numQuestions).Msg("rejected request")
		return run, err
	}

	logger = logger.With().Str("file", doc.Name).Str("format", string(doc.Format)).Logger()

	progress("extract", "Extracting text", 10, 100)
	text, err := p.extractor.Extract(ctx, doc.Path, doc.Format)
	if err != nil {
		logger.Error().Err(err).Msg("text extraction failed")
		return run, fmt.Errorf("%w: %s: %w", ErrExtractionFailed, doc.Name, err)
	}
	if strings.TrimSpace(text) == "" {
		logger.Warn().Msg("no text extracted")
		return run, fmt.Errorf("%s: %w", doc.Name, ErrNoTextExtracted)
	}

	progress("generate", "Generating MCQs...", 30, 100)
	prompt := BuildPrompt(text, numQuestions)
	result := p.completer.Complete(ctx, prompt)
	if result.OK() {
		if trimmed := strings.TrimSpace(result.Text); trimmed != "" {
			result = models.Success(trimmed)
		} else {
			result = models.Failure("empty completion")
		}
	}
	run.Result = result

	if !result.OK() && !p.opts.RenderOnFailure {
		run.Duration = time.Since(run.StartedAt)
		logger.Error().Str("reason", result.Reason).Msg("mcq generation failed")
		return run, fmt.Errorf("%w: %s", ErrGenerationFailed, result.Reason)
	}

	progress("render", "Writing output files", 80, 100)
	artifacts, err := p.renderer.Render(result.Text, doc.BaseName())
	if err != nil {
		logger.Error().Err(err).Msg("render failed")
		return run, fmt.Errorf("render %s: %w", doc.Name, err)
	}
	run.Artifacts = artifacts
	run.Duration = time.Since(run.StartedAt)

	logger.Info().
		Bool("ok", result.OK()).
		Int("blocks", artifacts.Blocks).
		Dur("duration", run.Duration).
		Msg("mcq generation complete")

	if sink != nil {
		if err := sink.Deliver(ctx, run); err != nil {
			return run, fmt.Errorf("deliver results: %w", err)
		}
	}

	progress("complete", "MCQ Generation Complete!", 100, 100)
	return run, nil
}

func (p *Pipeline) validateRequest(req models.GenerationRequest) error {
	if err := p.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				if fe.Field() == "NumQuestions" {
					return fmt.Errorf("%w: %w: must be at least 1, got %d", ErrInvalidInput, ErrQuestionCount, req.NumQuestions)
				}
			}
		}
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if p.opts.MaxQuestions > 0 && req.NumQuestions > p.opts.MaxQuestions {
		return fmt.Errorf("%w: %w: at most %d may be requested, got %d", ErrInvalidInput, ErrQuestionCount, p.opts.MaxQuestions, req.NumQuestions)
	}
	return nil
}
