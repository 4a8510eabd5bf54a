package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/shawty/internal/models"
)

func (h *Handler) StatsHandler(rw http.ResponseWriter, r *http.Request) {
	link, err := h.service.Stats(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeServiceError(rw, err)
		return
	}

	h.writeJSON(rw, http.StatusOK, models.StatsResponse{
		URL:       link.URL,
		Clicks:    link.Clicks,
		CreatedAt: link.CreatedAt,
		Active:    link.Active,
	})
}
