package transfers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/garrison-ops/garrison/internal/shared"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/transfers", h.Create)
	r.Get("/transfers", h.List)
	r.Get("/transfers/{id}", h.Get)
	r.Post("/transfers/{id}/approve", h.transition(func(r *http.Request, ident shared.Identity, id uuid.UUID) (Transfer, error) {
		return h.service.Approve(r.Context(), ident, id)
	}))
	r.Post("/transfers/{id}/dispatch", h.transition(func(r *http.Request, ident shared.Identity, id uuid.UUID) (Transfer, error) {
		return h.service.Dispatch(r.Context(), ident, id)
	}))
	r.Post("/transfers/{id}/receive", h.transition(func(r *http.Request, ident shared.Identity, id uuid.UUID) (Transfer, error) {
		return h.service.Receive(r.Context(), ident, id)
	}))
}
