package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/lehigh-university-libraries/datagen/internal/config"
	"github.com/lehigh-university-libraries/datagen/internal/generation"
	"github.com/lehigh-university-libraries/datagen/internal/handlers"
	"github.com/lehigh-university-libraries/datagen/internal/storage"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

func newServeCmd() *cobra.Command {
	var (
		port       string
		configPath string
		demo       bool
		uploadDir  string
		outputDir  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the upload and generation API server",
		Long: `Starts the datagen API on the specified port.

The server stores uploaded images, calls a vision model for each one
(OpenAI-compatible, DashScope/Qwen, Ollama or Gemini, chosen from the
endpoint URL) and writes the descriptions as a JSONL training dataset.
With --demo it answers with canned descriptions and needs no model.`,
		Example: `  # Start server on default port 8000
  datagen serve

  # Offline demo on a custom port
  datagen serve --demo --port 3001`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServerConfig(configPath)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("port") {
				cfg.Port = port
			}
			if flags.Changed("demo") {
				cfg.Demo = demo
			}
			if flags.Changed("upload-dir") {
				cfg.UploadDir = uploadDir
			}
			if flags.Changed("output-dir") {
				cfg.OutputDir = outputDir
			}

			uploads, err := storage.NewFileStore(cfg.UploadDir)
			if err != nil {
				return err
			}
			outputs, err := storage.NewFileStore(cfg.OutputDir)
			if err != nil {
				return err
			}
			index := storage.NewUploadIndex()

			var limiter *rate.Limiter
			if cfg.RequestsPerSecond > 0 {
				limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
			}

			svc := generation.New(generation.Options{
				Uploads:       uploads,
				Outputs:       outputs,
				Index:         index,
				Resolve:       generation.NewResolver(&http.Client{}),
				Demo:          cfg.Demo,
				DefaultAPIKey: cfg.DefaultAPIKey,
				Limiter:       limiter,
				Timeout:       cfg.ModelTimeout,
				Logger:        log.Logger,
			})
			handler := handlers.New(handlers.Options{
				Uploads:        uploads,
				Outputs:        outputs,
				Index:          index,
				Service:        svc,
				MaxUploadBytes: cfg.MaxUploadBytes,
				Logger:         log.Logger,
			})

			addr := ":" + cfg.Port
			server := &http.Server{
				Addr:              addr,
				Handler:           handlers.NewRouter(handler, cfg.AllowedOrigins),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				log.Info().Str("addr", addr).Str("url", "http://localhost"+addr).Bool("demo", cfg.Demo).Msg("Datagen API available")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				log.Info().Msg("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("Server shutdown failed")
					return err
				}
				log.Info().Msg("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8000", "Port to listen on")
	cmd.Flags().StringVar(&configPath, "config", "", "YAML server configuration file")
	cmd.Flags().BoolVar(&demo, "demo", false, "Answer with canned descriptions instead of calling a model")
	cmd.Flags().StringVar(&uploadDir, "upload-dir", "uploads", "Directory for uploaded images")
	cmd.Flags().StringVar(&outputDir, "output-dir", "outputs", "Directory for generated datasets")

	return cmd
}
