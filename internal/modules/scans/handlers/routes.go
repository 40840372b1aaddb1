package handlers

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RegisterRoutes registers all scan routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/scans", func(r chi.Router) {
		// Live scans fetch chains for every symbol, give them room
		r.With(middleware.Timeout(120 * time.Second)).Post("/", h.HandleRunScan)

		r.Get("/", h.HandleListRuns)
		r.Get("/{id}", h.HandleGetRun)
	})
}
