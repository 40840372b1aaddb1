package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all pricing routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/price", h.HandlePrice)
		r.Post("/implied-vol", h.HandleImpliedVol)
		r.Post("/analyze", h.HandleAnalyze)
		r.Post("/strategy", h.HandleStrategy)
	})
}
