package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lehigh-university-libraries/datagen/internal/client"
	"github.com/lehigh-university-libraries/datagen/internal/config"
	"github.com/lehigh-university-libraries/datagen/internal/download"
	"github.com/lehigh-university-libraries/datagen/internal/presenter"
	"github.com/lehigh-university-libraries/datagen/internal/report"
	"github.com/lehigh-university-libraries/datagen/internal/run"
	"github.com/lehigh-university-libraries/datagen/internal/selection"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type generateOptions struct {
	server             string
	configPath         string
	model              string
	endpoint           string
	apiKey             string
	instruction        string
	defaultInstruction bool
	temperature        float64
	outputDir          string
	format             string
	reportDir          string
	timeout            time.Duration
}

func newGenerateCmd() *cobra.Command {
	opts := generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate [image files or directories...]",
		Short: "Generate a training dataset from local images",
		Long: `Uploads the selected images to a datagen server, asks it to describe each
one with the configured vision model, and downloads the resulting JSONL
dataset into the output directory.

Directories are expanded one level deep. Files that are not images are
skipped.`,
		Example: `  # Describe every image in ./photos with an OpenAI-compatible endpoint
  datagen generate ./photos --endpoint https://api.openai.com/v1/chat/completions \
    --api-key $OPENAI_API_KEY --default-instruction

  # Use a config file and save Parquet next to the JSONL
  datagen generate a.png b.jpg --config run.yaml --format parquet --report reports`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeGenerate(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.server, "server", config.DefaultServerURL, "Base URL of the datagen server")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "YAML run configuration file")
	cmd.Flags().StringVar(&opts.model, "model", "", "Model identifier (e.g. gpt-4-vision, qwen-vl)")
	cmd.Flags().StringVar(&opts.endpoint, "endpoint", "", "Vision model API endpoint")
	cmd.Flags().StringVar(&opts.apiKey, "api-key", "", "API key for the model endpoint")
	cmd.Flags().StringVar(&opts.instruction, "instruction", "", "Instruction sent to the model with every image")
	cmd.Flags().BoolVar(&opts.defaultInstruction, "default-instruction", false, "Use the built-in instruction template")
	cmd.Flags().Float64Var(&opts.temperature, "temperature", config.DefaultTemperature, "Sampling temperature between 0 and 1")
	cmd.Flags().StringVar(&opts.outputDir, "output-dir", ".", "Directory to save the dataset into")
	cmd.Flags().StringVar(&opts.format, "format", download.FormatJSONL, "Local dataset format: jsonl or parquet")
	cmd.Flags().StringVar(&opts.reportDir, "report", "", "Write a YAML run report into this directory")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "HTTP timeout for each server call (0 means none)")

	return cmd
}

func executeGenerate(cmd *cobra.Command, opts generateOptions, paths []string) error {
	if !download.ValidFormat(opts.format) {
		return fmt.Errorf("unsupported format %q (want jsonl or parquet)", opts.format)
	}

	cfg, err := config.LoadRunConfig(opts.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("model") {
		cfg.ModelID = opts.model
	}
	if flags.Changed("endpoint") {
		cfg.Endpoint = opts.endpoint
	}
	if flags.Changed("api-key") {
		cfg.APIKey = opts.apiKey
	}
	if flags.Changed("instruction") {
		cfg.Instruction = opts.instruction
	}
	if opts.defaultInstruction {
		cfg.UseDefaultInstruction()
	}
	if flags.Changed("temperature") {
		cfg.SetTemperature(opts.temperature)
	}

	files := selection.NewStore()
	n, err := selection.NewLoader().Feed(files, paths...)
	if err != nil {
		return err
	}
	log.Info().Int("files", n).Int("images", files.Count()).Str("server", opts.server).Msg("Images selected")

	c := client.New(opts.server,
		client.WithHTTPClient(&http.Client{Timeout: opts.timeout}),
		client.WithLogger(log.Logger),
	)
	saver := &download.Saver{Client: c, Dir: opts.outputDir, Format: opts.format, Logger: log.Logger}
	console := presenter.New(cmd.OutOrStdout())

	orch := run.New(files, &cfg, c, c,
		run.WithDownloader(saver),
		run.WithNotifier(console.Notice),
		run.WithObserver(console.State),
		run.WithLogger(log.Logger),
	)

	if err := orch.Start(cmd.Context()); err != nil {
		var guard *run.GuardError
		if errors.As(err, &guard) {
			return fmt.Errorf("nothing generated: %w", err)
		}
		return err
	}

	st := orch.State()
	if err := console.Summary(st, saver.Saved()); err != nil {
		return err
	}

	if opts.reportDir != "" {
		names := make([]string, 0, files.Count())
		for _, img := range files.Images() {
			names = append(names, img.Name)
		}
		path, err := report.Save(opts.reportDir, report.New(opts.server, cfg, names, st, saver.Saved()))
		if err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("Run report saved")
	}

	if st.Phase == run.Failed {
		return errors.New("generation failed")
	}
	return nil
}
