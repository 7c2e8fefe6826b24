package audit

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/garrison-ops/garrison/internal/platform/httpx"
	"github.com/garrison-ops/garrison/internal/shared"
)

// Handler exposes the admin audit trail listing.
type Handler struct {
	logger *slog.Logger
	repo   *Repository
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, repo *Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/audit-logs", h.List)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ident, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	if ident.Role != shared.RoleAdmin {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "audit logs are admin only")
		return
	}

	req := ListRequest{Window: shared.WindowFromRequest(r, 50, 200)}
	query := r.URL.Query()
	req.Action = query.Get("action")
	for param, target := range map[string]*uuid.UUID{
		"actorId": &req.ActorID,
		"baseId":  &req.BaseID,
	} {
		raw := query.Get(param)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid "+param)
			return
		}
		*target = id
	}
	req.From = parseTimeParam(query.Get("from"))
	req.To = parseTimeParam(query.Get("to"))

	result, err := h.repo.List(r.Context(), req)
	if err != nil {
		h.logger.Warn("list audit logs", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if result == nil {
		result = []Log{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": result, "meta": req.Window})
}

func parseTimeParam(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t
	}
	return nil
}
