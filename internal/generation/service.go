package generation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/lehigh-university-libraries/datagen/internal/dataset"
	"github.com/lehigh-university-libraries/datagen/internal/models"
	"github.com/lehigh-university-libraries/datagen/internal/providers"
	"github.com/lehigh-university-libraries/datagen/internal/storage"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrFileNotFound is recorded for served names with no stored upload.
var ErrFileNotFound = errors.New("file not found")

// Options wires a Service
type Options struct {
	Uploads *storage.FileStore
	Outputs *storage.FileStore
	Index   *storage.UploadIndex
	// Resolve returns the provider for a wire format.
	Resolve func(providers.Kind) providers.Provider
	// Demo routes every request to the demo provider.
	Demo          bool
	Model         string
	Prompt        string
	DefaultAPIKey string
	Limiter       *rate.Limiter
	Timeout       time.Duration
	Now           func() time.Time
	Logger        zerolog.Logger
}

// Service turns uploaded images into a training dataset
type Service struct {
	opts Options
}

func New(opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Index == nil {
		opts.Index = storage.NewUploadIndex()
	}
	return &Service{opts: opts}
}

// Demo reports whether the service answers with canned descriptions.
func (s *Service) Demo() bool {
	return s.opts.Demo
}

// Generate describes every named upload in order. Per-file problems are
// recorded as failed details; the error return is reserved for failures that
// lose the whole batch.
func (s *Service) Generate(ctx context.Context, req models.GenerateRequest) (*models.GenerateResponse, error) {
	kind := providers.Detect(req.Endpoint)
	if s.opts.Demo {
		kind = providers.KindDemo
	}
	provider := s.opts.Resolve(kind)
	if provider == nil {
		return nil, fmt.Errorf("no provider for %s endpoints", kind)
	}

	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = s.opts.DefaultAPIKey
	}

	log := s.opts.Logger.With().Str("provider", kind.String()).Int("files", len(req.FileNames)).Logger()
	log.Info().Bool("api_key", apiKey != "").Float64("temperature", req.Temperature).Msg("generation started")

	resp := &models.GenerateResponse{Details: make([]models.FileDetail, 0, len(req.FileNames))}
	records := make([]dataset.Record, 0, len(req.FileNames))

	for _, name := range req.FileNames {
		description, err := s.describe(ctx, provider, providers.Config{
			Endpoint:    req.Endpoint,
			APIKey:      apiKey,
			Model:       s.opts.Model,
			Instruction: req.Instruction,
			Prompt:      s.opts.Prompt,
			Temperature: req.Temperature,
		}, name)
		if err != nil {
			log.Warn().Err(err).Str("file", name).Msg("file failed")
			resp.Failed++
			resp.Details = append(resp.Details, models.FileDetail{
				File:   name,
				Status: models.StatusFailed,
				Error:  err.Error(),
			})
			continue
		}

		records = append(records, dataset.NewRecord(s.originalName(req.FileMapping, name), description))
		resp.Success++
		resp.Details = append(resp.Details, models.FileDetail{
			File:        name,
			Status:      models.StatusSuccess,
			Description: description,
		})
	}

	if len(records) > 0 {
		outputName, err := s.write(ctx, records)
		if err != nil {
			return nil, err
		}
		resp.OutputFile = outputName
	}

	log.Info().Int("success", resp.Success).Int("failed", resp.Failed).Str("output_file", resp.OutputFile).Msg("generation finished")
	return resp, nil
}

func (s *Service) describe(ctx context.Context, provider providers.Provider, cfg providers.Config, name string) (string, error) {
	if !s.opts.Uploads.Exists(name) {
		return "", ErrFileNotFound
	}
	data, err := s.opts.Uploads.ReadFile(name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrFileNotFound
		}
		return "", err
	}
	cfg.Image = data
	cfg.MIMEType = mimetype.Detect(data).String()

	if s.opts.Limiter != nil {
		if err := s.opts.Limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	callCtx := ctx
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}
	description, err := provider.Describe(callCtx, cfg)
	if err != nil {
		return "", fmt.Errorf("model call failed: %w", err)
	}
	if description == "" {
		return "", errors.New("model returned an empty description")
	}
	return description, nil
}

// originalName prefers the client's mapping, then what this server saw at
// upload time, then the served name itself.
func (s *Service) originalName(mapping map[string]string, served string) string {
	if name := mapping[served]; name != "" {
		return name
	}
	if f, ok := s.opts.Index.Get(served); ok && f.OriginalName != "" {
		return f.OriginalName
	}
	return served
}

func (s *Service) write(ctx context.Context, records []dataset.Record) (string, error) {
	prefix := "train_"
	if s.opts.Demo {
		prefix = "train_demo_"
	}
	name := prefix + s.opts.Now().Format("20060102_150405") + ".jsonl"

	var buf bytes.Buffer
	if err := dataset.WriteJSONL(&buf, records); err != nil {
		return "", fmt.Errorf("failed to encode dataset: %w", err)
	}
	if _, err := s.opts.Outputs.Write(ctx, name, buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to write dataset: %w", err)
	}
	return name, nil
}
