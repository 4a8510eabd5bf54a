package handler

import (
	"net/http"
	"strconv"

	"github.com/mmeshcher/shawty/internal/models"
)

// ListHandler serves GET /api/urls?page=&limit=. Missing or non-numeric
// parameters fall back to the defaults.
func (h *Handler) ListHandler(rw http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page")
	limit := queryInt(r, "limit")

	result, err := h.service.List(r.Context(), page, limit)
	if err != nil {
		h.writeServiceError(rw, err)
		return
	}

	urls := make([]models.ShortenResponse, 0, len(result.Links))
	for i := range result.Links {
		urls = append(urls, h.toResponse(&result.Links[i]))
	}

	h.writeJSON(rw, http.StatusOK, models.ListResponse{
		URLs:       urls,
		Pagination: result.Pagination,
	})
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}
