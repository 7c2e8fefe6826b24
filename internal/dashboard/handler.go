package dashboard

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/garrison-ops/garrison/internal/platform/httpx"
	"github.com/garrison-ops/garrison/internal/shared"
)

// Handler exposes the dashboard endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/dashboard/summary", h.Summary)
	r.Get("/dashboard/net-movement", h.NetMovement)
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	ident, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	req, err := summaryRequest(r.URL.Query())
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	summary, err := h.service.Summary(r.Context(), ident, req)
	if err != nil {
		h.logger.Warn("dashboard summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": summary})
}

func (h *Handler) NetMovement(w http.ResponseWriter, r *http.Request) {
	ident, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	req, err := summaryRequest(r.URL.Query())
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	nm, err := h.service.NetMovement(r.Context(), ident, req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": nm})
}

// summaryRequest parses and requires baseId, from and to.
func summaryRequest(query url.Values) (SummaryRequest, error) {
	var req SummaryRequest

	baseID, err := uuid.Parse(query.Get("baseId"))
	if err != nil {
		return SummaryRequest{}, errRequired("baseId")
	}
	req.BaseID = baseID

	from, err := parseWindowBound(query.Get("from"))
	if err != nil {
		return SummaryRequest{}, errRequired("from")
	}
	to, err := parseWindowBound(query.Get("to"))
	if err != nil {
		return SummaryRequest{}, errRequired("to")
	}
	req.From, req.To = from, to

	if raw := query.Get("equipmentTypeId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return SummaryRequest{}, errRequired("equipmentTypeId")
		}
		req.EquipmentTypeID = id
	}
	return req, nil
}

type paramError string

func (e paramError) Error() string { return string(e) }

func errRequired(param string) error {
	return paramError(param + " is required and must be valid")
}

func parseWindowBound(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
