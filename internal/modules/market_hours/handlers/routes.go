package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all market calendar routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/markets", func(r chi.Router) {
		r.Get("/", h.HandleListMarkets)
		r.Get("/open", h.HandleGetOpenMarkets)

		r.Route("/{market}", func(r chi.Router) {
			r.Get("/status", h.HandleGetStatus)
			r.Get("/days/{date}", h.HandleGetDay)
			r.Get("/holidays", h.HandleGetHolidays)
			r.Get("/trading-days", h.HandleGetTradingDays)
			r.Get("/partial-days", h.HandleGetPartialDays)
			r.Post("/materialize", h.HandleMaterialize)
			r.Delete("/cache", h.HandleClearCache)
		})
	})
}
