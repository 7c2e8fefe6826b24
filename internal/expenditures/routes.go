package expenditures

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/expenditures", h.Create)
	r.Get("/expenditures", h.List)
}
