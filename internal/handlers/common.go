package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/lehigh-university-libraries/datagen/internal/generation"
	"github.com/lehigh-university-libraries/datagen/internal/storage"
	"github.com/rs/zerolog"
)

// DefaultMaxUploadBytes caps a single uploaded image
const DefaultMaxUploadBytes = 10 * 1024 * 1024

// Options wires a Handler
type Options struct {
	Uploads        *storage.FileStore
	Outputs        *storage.FileStore
	Index          *storage.UploadIndex
	Service        *generation.Service
	MaxUploadBytes int64
	Logger         zerolog.Logger
}

type Handler struct {
	uploads        *storage.FileStore
	outputs        *storage.FileStore
	index          *storage.UploadIndex
	service        *generation.Service
	maxUploadBytes int64
	logger         zerolog.Logger
}

func New(opts Options) *Handler {
	if opts.Index == nil {
		opts.Index = storage.NewUploadIndex()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &Handler{
		uploads:        opts.Uploads,
		outputs:        opts.Outputs,
		index:          opts.Index,
		service:        opts.Service,
		maxUploadBytes: opts.MaxUploadBytes,
		logger:         opts.Logger,
	}
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("Unable to encode JSON response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		h.logger.Error().Int("status", code).Msg(message)
	} else {
		h.logger.Warn().Int("status", code).Msg(message)
	}
	http.Error(w, message, code)
}
