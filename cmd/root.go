package cmd

import (
	"github.com/joho/godotenv"
	"github.com/lehigh-university-libraries/datagen/internal/logging"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "datagen",
		Short: "Multimodal fine-tuning dataset generator",
		Long: `Datagen turns a folder of images into a JSONL training dataset by asking a
vision-capable model to describe each image.

Run "datagen serve" to host the upload/generate API, then "datagen generate"
to push images through it and download the resulting dataset.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			logging.Init(logLevel)
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default from DATAGEN_LOG_LEVEL, then info)")

	// Add subcommands
	cmd.AddCommand(newGenerateCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newOutputsCmd())
	cmd.AddCommand(newConvertCmd())

	return cmd
}
