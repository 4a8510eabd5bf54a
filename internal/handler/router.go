package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mmeshcher/shawty/internal/middleware"
)

func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(h.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.GzipMiddleware)

	r.Get("/", h.IndexHandler)
	r.Get("/ping", h.PingHandler)

	r.Route("/api", func(r chi.Router) {
		r.Post("/shorten", h.ShortenHandler)
		r.Get("/urls", h.ListHandler)
		r.Get("/stats/{slug}", h.StatsHandler)
	})

	r.Get("/{slug}", h.RedirectHandler)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, http.StatusNotFound, "Not found")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}
