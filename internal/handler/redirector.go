package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RedirectHandler counts the visit and answers 301. The response must not be
// cached, or repeat visits would bypass the counter.
func (h *Handler) RedirectHandler(rw http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	link, err := h.service.Resolve(r.Context(), slug)
	if err != nil {
		h.writeServiceError(rw, err)
		return
	}

	rw.Header().Set("Location", link.URL)
	rw.Header().Set("Cache-Control", "no-store")
	rw.WriteHeader(http.StatusMovedPermanently)
}
