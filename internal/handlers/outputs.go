package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/lehigh-university-libraries/datagen/internal/models"
	"github.com/lehigh-university-libraries/datagen/internal/storage"
)

func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	f, size, err := h.outputs.Open(name)
	switch {
	case errors.Is(err, storage.ErrInvalidKey):
		h.writeError(w, "Invalid file name", http.StatusBadRequest)
		return
	case errors.Is(err, storage.ErrNotFound):
		h.writeError(w, "File not found", http.StatusNotFound)
		return
	case err != nil:
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	if _, err := io.Copy(w, f); err != nil {
		h.logger.Error().Err(err).Str("file", name).Msg("Download interrupted")
	}
}

func (h *Handler) HandleOutputs(w http.ResponseWriter, r *http.Request) {
	entries, err := h.outputs.List("*.jsonl")
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	files := make([]models.OutputFile, 0, len(entries))
	for _, e := range entries {
		files = append(files, models.OutputFile{Name: e.Name, Size: e.Size, CreatedAt: e.ModTime})
	}
	h.writeJSON(w, models.OutputsResponse{Files: files})
}

func (h *Handler) HandleDeleteUpload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	err := h.uploads.Delete(name)
	switch {
	case errors.Is(err, storage.ErrInvalidKey):
		h.writeError(w, "Invalid file name", http.StatusBadRequest)
		return
	case errors.Is(err, storage.ErrNotFound):
		h.writeError(w, "File not found", http.StatusNotFound)
		return
	case err != nil:
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.index.Delete(name)
	h.writeJSON(w, map[string]any{"success": true, "deleted": name})
}
