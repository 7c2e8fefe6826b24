package assignments

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/assignments", h.Create)
	r.Get("/assignments", h.List)
}
