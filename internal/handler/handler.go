package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/shawty/internal/models"
	"github.com/mmeshcher/shawty/internal/service"
)

const maxRequestBody = 64 << 10

type Handler struct {
	service *service.ShortenerService
	logger  *zap.Logger
}

func NewHandler(service *service.ShortenerService, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

func (h *Handler) toResponse(link *models.Link) models.ShortenResponse {
	return models.ShortenResponse{
		Slug:      link.Slug,
		URL:       link.URL,
		ShortURL:  h.service.ShortURL(link.Slug),
		Clicks:    link.Clicks,
		Active:    link.Active,
		CreatedAt: link.CreatedAt,
		ExpiresAt: link.ExpiresAt,
	}
}

func (h *Handler) writeJSON(rw http.ResponseWriter, status int, payload any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)

	if err := json.NewEncoder(rw).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(rw http.ResponseWriter, status int, message string) {
	h.writeJSON(rw, status, models.ErrorResponse{Error: message})
}

// writeServiceError maps service errors onto status codes and client
// messages. Internal details stay in the log.
func (h *Handler) writeServiceError(rw http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyURL):
		h.writeError(rw, http.StatusBadRequest, "URL is required")
	case errors.Is(err, service.ErrInvalidURL):
		h.writeError(rw, http.StatusBadRequest, "Invalid URL format")
	case errors.Is(err, service.ErrForbiddenTarget):
		h.writeError(rw, http.StatusBadRequest, "URL points to this service")
	case errors.Is(err, service.ErrInvalidSlug):
		h.writeError(rw, http.StatusBadRequest, "Invalid slug format")
	case errors.Is(err, service.ErrSlugTaken):
		h.writeError(rw, http.StatusConflict, "Slug already exists")
	case errors.Is(err, service.ErrNotFound):
		h.writeError(rw, http.StatusNotFound, "URL not found")
	case errors.Is(err, service.ErrSlugAllocationExhausted):
		h.writeError(rw, http.StatusInternalServerError, "Failed to generate a unique slug")
	default:
		h.logger.Error("Request failed", zap.Error(err))
		h.writeError(rw, http.StatusInternalServerError, "Internal server error")
	}
}
