package handlers

import (
	"net/http"
)

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	mode := "live"
	if h.service != nil && h.service.Demo() {
		mode = "demo"
	}
	h.writeJSON(w, map[string]string{
		"status":  "ok",
		"message": "dataset generator API running",
		"mode":    mode,
	})
}

func (h *Handler) HandleHealthcheck(w http.ResponseWriter, r *http.Request) {
	if _, err := w.Write([]byte("OK")); err != nil {
		h.logger.Error().Err(err).Msg("Unable to write healthcheck")
	}
}
