package handler

import (
	"net/http"
)

type serviceDescriptor struct {
	Name      string            `json:"name"`
	Endpoints map[string]string `json:"endpoints"`
}

// IndexHandler describes the API on GET /.
func (h *Handler) IndexHandler(rw http.ResponseWriter, r *http.Request) {
	h.writeJSON(rw, http.StatusOK, serviceDescriptor{
		Name: "shawty URL shortener",
		Endpoints: map[string]string{
			"POST /api/shorten":     "Create a short URL from {url, slug?}",
			"GET /api/urls":         "List short URLs, newest first (?page=&limit=)",
			"GET /api/stats/{slug}": "Show clicks for a short URL",
			"GET /{slug}":           "Redirect to the original URL",
			"GET /ping":             "Check storage health",
		},
	})
}
