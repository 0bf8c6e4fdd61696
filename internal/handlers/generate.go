package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/datagen/internal/config"
	"github.com/lehigh-university-libraries/datagen/internal/models"
)

func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.writeError(w, "Failed to parse form: "+err.Error(), http.StatusBadRequest)
		return
	}

	req, msg := parseGenerateRequest(r)
	if msg != "" {
		h.writeError(w, msg, http.StatusBadRequest)
		return
	}

	resp, err := h.service.Generate(r.Context(), req)
	if err != nil {
		h.writeError(w, "Generation failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, resp)
}

// parseGenerateRequest returns a non-empty message when the form is unusable.
func parseGenerateRequest(r *http.Request) (models.GenerateRequest, string) {
	req := models.GenerateRequest{
		Endpoint:    strings.TrimSpace(r.FormValue(models.FieldEndpoint)),
		APIKey:      r.FormValue(models.FieldAPIKey),
		Instruction: r.FormValue(models.FieldInstruction),
		Temperature: config.DefaultTemperature,
	}
	if req.Endpoint == "" {
		return req, models.FieldEndpoint + " is required"
	}
	if strings.TrimSpace(req.Instruction) == "" {
		return req, models.FieldInstruction + " is required"
	}

	if raw := strings.TrimSpace(r.FormValue(models.FieldTemperature)); raw != "" {
		t, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return req, "Invalid temperature: " + raw
		}
		req.Temperature = config.ClampTemperature(t)
	}

	rawNames := r.FormValue(models.FieldFileNames)
	if strings.TrimSpace(rawNames) == "" {
		return req, models.FieldFileNames + " is required"
	}
	if err := json.Unmarshal([]byte(rawNames), &req.FileNames); err != nil {
		return req, "Invalid " + models.FieldFileNames + ": " + err.Error()
	}

	// A malformed mapping only costs the original names.
	if raw := r.FormValue(models.FieldFileMapping); raw != "" {
		var mapping map[string]string
		if err := json.Unmarshal([]byte(raw), &mapping); err == nil {
			req.FileMapping = mapping
		}
	}
	return req, ""
}
