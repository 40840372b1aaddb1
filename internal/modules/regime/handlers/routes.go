package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all regime routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/regime", func(r chi.Router) {
		r.Get("/", h.HandleCurrent)
		r.Post("/classify", h.HandleClassify)
	})
}
