package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lehigh-university-libraries/datagen/internal/client"
	"github.com/lehigh-university-libraries/datagen/internal/dataset"
	"github.com/rs/zerolog"
)

// Supported local formats
const (
	FormatJSONL   = "jsonl"
	FormatParquet = "parquet"
)

// Saver stores generated artifacts in a local directory
type Saver struct {
	Client *client.Client
	Dir    string
	// Format is FormatJSONL or FormatParquet. Parquet keeps the JSONL too.
	Format string
	Logger zerolog.Logger

	mu    sync.Mutex
	saved []string
}

// Download saves the named artifact under Dir using the artifact's name.
func (s *Saver) Download(ctx context.Context, artifact string) error {
	path, err := s.target(artifact)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	n, err := s.Client.Download(ctx, artifact, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return err
	}
	s.record(path)
	s.Logger.Info().Str("path", path).Int64("bytes", n).Msg("Dataset saved")

	if s.Format == FormatParquet {
		dst := strings.TrimSuffix(path, filepath.Ext(path)) + ".parquet"
		count, err := dataset.ConvertFile(path, dst)
		if err != nil {
			return fmt.Errorf("failed to convert %s: %w", artifact, err)
		}
		s.record(dst)
		s.Logger.Info().Str("path", dst).Int("records", count).Msg("Dataset converted")
	}
	return nil
}

// Saved lists the files written so far, in order.
func (s *Saver) Saved() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.saved))
	copy(out, s.saved)
	return out
}

func (s *Saver) record(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, path)
}

// target resolves the artifact to a path directly inside Dir.
func (s *Saver) target(artifact string) (string, error) {
	name := filepath.Base(filepath.Clean(artifact))
	if artifact == "" || name != artifact || name == "." || name == ".." || strings.ContainsAny(artifact, `/\`) {
		return "", fmt.Errorf("refusing to save artifact %q outside %s", artifact, s.Dir)
	}
	return filepath.Join(s.Dir, name), nil
}

// ValidFormat reports whether f names a supported local format.
func ValidFormat(f string) bool {
	return f == FormatJSONL || f == FormatParquet
}
