package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/shawty/internal/models"
)

// ShortenHandler serves POST /api/shorten.
func (h *Handler) ShortenHandler(rw http.ResponseWriter, r *http.Request) {
	var req models.ShortenRequest

	decoder := json.NewDecoder(http.MaxBytesReader(rw, r.Body, maxRequestBody))
	if err := decoder.Decode(&req); err != nil {
		h.logger.Debug("Invalid request body", zap.Error(err))
		h.writeError(rw, http.StatusBadRequest, "Invalid request body")
		return
	}

	link, err := h.service.Shorten(r.Context(), req)
	if err != nil {
		h.writeServiceError(rw, err)
		return
	}

	h.writeJSON(rw, http.StatusCreated, h.toResponse(link))
}
