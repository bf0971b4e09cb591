package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"mcqgen/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "mcqgen",
	Short:         "Generate multiple-choice questions from documents",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		ui{out: rootCmd.ErrOrStderr()}.Error("%v", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file (overrides MCQGEN_CONFIG)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if off, _ := cmd.Flags().GetBool("no-color"); off {
			color.NoColor = true
		}
	}

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads configuration using the --config flag, then MCQGEN_CONFIG.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}
