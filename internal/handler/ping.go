package handler

import (
	"net/http"
)

func (h *Handler) PingHandler(rw http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		h.writeError(rw, http.StatusInternalServerError, "Storage unavailable")
		return
	}

	rw.WriteHeader(http.StatusOK)
}
