package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/datagen/internal/models"
)

const maxFormMemory = 32 << 20

func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		h.writeError(w, "Failed to parse upload form: "+err.Error(), http.StatusBadRequest)
		return
	}
	headers := r.MultipartForm.File[models.FieldFiles]
	if len(headers) == 0 {
		h.writeError(w, "No files uploaded", http.StatusBadRequest)
		return
	}

	// Reject the whole batch before anything is written.
	for _, header := range headers {
		if !strings.HasPrefix(strings.ToLower(header.Header.Get("Content-Type")), "image/") {
			h.writeError(w, fmt.Sprintf("File %s is not an image", header.Filename), http.StatusBadRequest)
			return
		}
		if header.Size > h.maxUploadBytes {
			h.writeError(w, fmt.Sprintf("File %s too large (max %d bytes)", header.Filename, h.maxUploadBytes), http.StatusBadRequest)
			return
		}
	}

	uploaded := make([]models.UploadedFile, 0, len(headers))
	for _, header := range headers {
		f, err := h.saveUpload(r, header)
		if err != nil {
			h.writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		uploaded = append(uploaded, f)
	}

	h.logger.Info().Int("files", len(uploaded)).Msg("Images uploaded")
	h.writeJSON(w, models.UploadResponse{
		Success: true,
		Files:   uploaded,
		Count:   len(uploaded),
	})
}

func (h *Handler) saveUpload(r *http.Request, header *multipart.FileHeader) (models.UploadedFile, error) {
	file, err := header.Open()
	if err != nil {
		return models.UploadedFile{}, fmt.Errorf("failed to open %s: %w", header.Filename, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		return models.UploadedFile{}, fmt.Errorf("failed to read %s: %w", header.Filename, err)
	}

	name := servedName(header.Filename)
	if _, err := h.uploads.Write(r.Context(), name, data); err != nil {
		return models.UploadedFile{}, fmt.Errorf("failed to save %s: %w", header.Filename, err)
	}

	log := h.logger.Debug().Str("original_name", header.Filename).Str("saved_name", name).Int("bytes", len(data))
	if width, height, err := getImageDimensions(data); err == nil {
		log = log.Int("width", width).Int("height", height)
	}
	log.Msg("Image saved")

	f := models.UploadedFile{
		SavedName:    name,
		OriginalName: header.Filename,
		Size:         int64(len(data)),
	}
	h.index.Set(f)
	return f, nil
}
