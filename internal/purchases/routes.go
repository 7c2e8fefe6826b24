package purchases

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/purchases", h.Create)
	r.Get("/purchases", h.List)
}
