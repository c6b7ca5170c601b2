package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/staffhub-hr/staffhub/internal/audit"
	"github.com/staffhub-hr/staffhub/internal/auth"
	"github.com/staffhub-hr/staffhub/internal/observability"
	"github.com/staffhub-hr/staffhub/internal/rbac"
	"github.com/staffhub-hr/staffhub/internal/shared"
	"github.com/staffhub-hr/staffhub/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger        *slog.Logger
	Config        *Config
	Authenticator *auth.Authenticator
	AuthHandler   *auth.Handler
	RBACHandler   *rbac.Handler
	AuditHandler  *audit.Handler
	Enforcer      *rbac.Enforcer
	Pool          *pgxpool.Pool
	Metrics       *observability.Metrics
	JobsHandler   *jobs.Handler
}

// NewRouter constructs the chi.Router with Staffhub defaults. Public
// auth endpoints sit at the root; everything under /api/admin is gated
// by per-route permission checks.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:        params.Logger,
		Config:        params.Config,
		Authenticator: params.Authenticator.Middleware,
		Metrics:       params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	params.AuthHandler.MountRoutes(r)

	r.Route("/api/admin", func(r chi.Router) {
		r.Group(func(gr chi.Router) {
			gr.Use(params.Enforcer.Require(shared.PermUserRead))
			params.RBACHandler.MountCatalogRoutes(gr)
		})
		r.Group(func(gr chi.Router) {
			gr.Use(params.Enforcer.Require(shared.PermUserRoleAssign))
			params.RBACHandler.MountGrantRoutes(gr)
		})
		r.Group(func(gr chi.Router) {
			gr.Use(params.Enforcer.Require(shared.PermAuditRead))
			params.AuditHandler.MountRoutes(gr)
			if params.JobsHandler != nil {
				params.JobsHandler.MountRoutes(gr)
			}
		})
		r.Group(func(gr chi.Router) {
			gr.Use(params.Enforcer.Require(shared.PermImpersonateUser))
			params.AuthHandler.MountAdminRoutes(gr)
		})
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
