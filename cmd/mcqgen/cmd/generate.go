package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mcqgen/internal/app"
	"mcqgen/internal/config"
	"mcqgen/internal/logging"
	"mcqgen/internal/models"
	"mcqgen/internal/services"
)

var generateCmd = &cobra.Command{
	Use:   "generate <file>",
	Short: "Generate MCQs for a local PDF, DOCX or TXT file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := cmd.Flags().GetInt("questions")
		resultsDir, _ := cmd.Flags().GetString("results")
		renderOnFailure, _ := cmd.Flags().GetBool("render-on-failure")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if resultsDir != "" {
			cfg.ResultsDir = resultsDir
		}
		if cmd.Flags().Changed("render-on-failure") {
			cfg.RenderOnFailure = renderOnFailure
		}
		if err := cfg.Validate(); err != nil {
			if errors.Is(err, config.ErrMissingAPIKey) {
				return fmt.Errorf("%w (export it or add it to .env)", err)
			}
			return err
		}

		out := ui{out: cmd.OutOrStdout()}
		logger := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
		a := app.New(cfg, logger)

		_, err = a.Pipeline.RunWithProgress(
			cmd.Context(),
			services.FileSource{Path: args[0]},
			n,
			consoleSink{ui: out},
			func(step, message string, current, total int) {
				if step == "complete" {
					out.Success("%s", message)
					return
				}
				out.Step("[%3d%%] %s", current*100/total, message)
			},
		)
		return describeFailure(err)
	},
}

func init() {
	generateCmd.Flags().IntP("questions", "n", 5, "Number of questions to generate")
	generateCmd.Flags().String("results", "", "Directory for generated files (overrides RESULTS_DIR)")
	generateCmd.Flags().Bool("render-on-failure", false, "Write empty output files when generation fails")
}

// consoleSink prints where the artifacts of a run were written.
type consoleSink struct {
	ui ui
}

func (c consoleSink) Deliver(ctx context.Context, run *models.Run) error {
	if !run.Result.OK() {
		c.ui.Warning("MCQ generation failed: %s", run.Result.Reason)
	}
	c.ui.Success("MCQs saved to %s", run.Artifacts.TextPath)
	c.ui.Success("PDF saved to %s (%d blocks, %d pages)",
		run.Artifacts.PDFPath, run.Artifacts.Blocks, run.Artifacts.Pages)
	return nil
}

func describeFailure(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, services.ErrUnsupportedFormat):
		return fmt.Errorf("only %v files are supported: %w", models.AllowedExtensions(), err)
	case errors.Is(err, services.ErrNoTextExtracted):
		return errors.New("no text extracted from the document")
	default:
		return err
	}
}
