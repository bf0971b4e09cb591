package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"mcqgen/internal/models"
)

// Completer turns a prompt into generated MCQ text.
type Completer interface {
	Complete(ctx context.Context, prompt string) models.GenerationResult
}

// CompletionConfig is the subset of configuration the completion client needs.
type CompletionConfig struct {
	APIKey   string
	Endpoint string
	Model    string
	Timeout  time.Duration
}

// CompletionService talks to an OpenAI-compatible chat completion endpoint.
type CompletionService struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  zerolog.Logger
}

func NewCompletionService(cfg CompletionConfig, logger zerolog.Logger) *CompletionService {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.Endpoint, "/")
	}
	return &CompletionService{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// zeroTemperature asks for greedy sampling. go-openai drops a literal 0 from
// the request body, which would leave the server default in place.
const zeroTemperature = math.SmallestNonzeroFloat32

// Complete sends prompt as a single user message. Every failure is folded
// into a Failure result; no error is returned.
func (s *CompletionService) Complete(ctx context.Context, prompt string) models.GenerationResult {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: zeroTemperature,
	}

	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		reason := describeCompletionError(err)
		s.logger.Error().Err(err).Str("model", s.model).Msgf("API Error: %s", reason)
		return models.Failure(reason)
	}
	if len(resp.Choices) == 0 {
		s.logger.Error().Str("model", s.model).Msg("Error processing API response: no choices returned")
		return models.Failure("no choices returned")
	}

	content := resp.Choices[0].Message.Content
	s.logger.Debug().
		Str("model", resp.Model).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Dur("elapsed", time.Since(start)).
		Msg("completion received")
	return models.Success(content)
}

func describeCompletionError(err error) string {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return fmt.Sprintf("status %d: Unknown error", apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.Err == nil {
			return fmt.Sprintf("status %d: Unknown error", reqErr.HTTPStatusCode)
		}
		return fmt.Sprintf("status %d: %v", reqErr.HTTPStatusCode, reqErr.Err)
	}
	return err.Error()
}
