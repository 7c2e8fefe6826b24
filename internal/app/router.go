package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/garrison-ops/garrison/internal/assignments"
	"github.com/garrison-ops/garrison/internal/audit"
	"github.com/garrison-ops/garrison/internal/auth"
	"github.com/garrison-ops/garrison/internal/dashboard"
	"github.com/garrison-ops/garrison/internal/expenditures"
	"github.com/garrison-ops/garrison/internal/masterdata/bases"
	"github.com/garrison-ops/garrison/internal/masterdata/equipment"
	"github.com/garrison-ops/garrison/internal/purchases"
	"github.com/garrison-ops/garrison/internal/transfers"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	AuthMiddleware     auth.Middleware
	AuthHandler        *auth.Handler
	PurchaseHandler    *purchases.Handler
	TransferHandler    *transfers.Handler
	AssignmentHandler  *assignments.Handler
	ExpenditureHandler *expenditures.Handler
	DashboardHandler   *dashboard.Handler
	BaseHandler        *bases.Handler
	EquipmentHandler   *equipment.Handler
	AuditHandler       *audit.Handler
	Pool               *pgxpool.Pool
}

// NewRouter constructs the chi.Router with Garrison defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if params.Pool != nil {
			if err := params.Pool.Ping(ctx); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	authed := params.AuthMiddleware.Authenticate

	r.Route("/api/v1", func(r chi.Router) {
		params.AuthHandler.MountRoutes(r, authed)

		r.Group(func(r chi.Router) {
			r.Use(authed)
			params.PurchaseHandler.MountRoutes(r)
			params.TransferHandler.MountRoutes(r)
			params.AssignmentHandler.MountRoutes(r)
			params.ExpenditureHandler.MountRoutes(r)
			params.DashboardHandler.MountRoutes(r)
			params.BaseHandler.MountRoutes(r)
			params.EquipmentHandler.MountRoutes(r)
			params.AuditHandler.MountRoutes(r)
		})
	})

	return r
}
