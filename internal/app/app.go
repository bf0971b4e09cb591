// Package app wires configuration into the services shared by the web
// server and the command-line tool.
package app

import (
	"github.com/rs/zerolog"

	"mcqgen/internal/config"
	"mcqgen/internal/services"
)

type App struct {
	Config    config.Config
	Pipeline  *services.Pipeline
	Documents *services.DocumentService
	Logger    zerolog.Logger
}

func New(cfg config.Config, logger zerolog.Logger) *App {
	completion := services.NewCompletionService(services.CompletionConfig{
		APIKey:   cfg.APIKey,
		Endpoint: cfg.APIEndpoint,
		Model:    cfg.Model,
		Timeout:  cfg.RequestTimeout,
	}, logger)

	pipeline := services.NewPipeline(
		services.NewExtractor(logger),
		completion,
		services.NewRenderer(cfg.ResultsDir, logger),
		services.PipelineOptions{
			MaxQuestions:    cfg.MaxQuestions,
			RenderOnFailure: cfg.RenderOnFailure,
		},
		logger,
	)

	return &App{
		Config:    cfg,
		Pipeline:  pipeline,
		Documents: services.NewDocumentService(cfg.UploadDir, logger),
		Logger:    logger,
	}
}
