package main

import (
	"errors"
	"net/http"
	"time"

	"mcqgen/internal/api"
	"mcqgen/internal/app"
	"mcqgen/internal/config"
	"mcqgen/internal/logging"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		bootLogger := logging.New("info", "console", nil)
		bootLogger.Fatal().Err(err).Msg("load config")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, nil)

	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrMissingAPIKey) {
			logger.Fatal().Msg("DEEPSEEK_API_KEY must be set to generate MCQs")
		}
		logger.Fatal().Err(err).Msg("invalid config")
	}
	if err := cfg.EnsureDirs(); err != nil {
		logger.Fatal().Err(err).Msg("prepare directories")
	}

	a := app.New(cfg, logger)
	server := api.NewServer(a.Pipeline, a.Documents, cfg.ResultsDir, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: writeTimeout(cfg.RequestTimeout),
	}

	logger.Info().
		Str("addr", srv.Addr).
		Str("model", cfg.Model).
		Str("results_dir", cfg.ResultsDir).
		Msg("listening")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("server failed")
	}
}

// writeTimeout leaves room for extraction and rendering on top of the
// completion call.
func writeTimeout(completion time.Duration) time.Duration {
	if completion <= 0 {
		return 0
	}
	return completion + time.Minute
}

