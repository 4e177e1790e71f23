package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/solarquote/solarquote/internal/accounts"
	"github.com/solarquote/solarquote/internal/audit"
	"github.com/solarquote/solarquote/internal/auth"
	"github.com/solarquote/solarquote/internal/catalog"
	"github.com/solarquote/solarquote/internal/observability"
	"github.com/solarquote/solarquote/internal/payments"
	"github.com/solarquote/solarquote/internal/platform/httpx"
	"github.com/solarquote/solarquote/internal/rbac"
	"github.com/solarquote/solarquote/internal/sales/customers"
	"github.com/solarquote/solarquote/internal/sales/quotations"
	"github.com/solarquote/solarquote/internal/visits"
	"github.com/solarquote/solarquote/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	AuthHandler        *auth.Handler
	AccountsHandler    *accounts.Handler
	CatalogHandler     *catalog.Handler
	CustomersHandler   *customers.Handler
	QuotationsHandler  *quotations.Handler
	VisitsHandler      *visits.Handler
	PaymentsHandler    *payments.Handler
	PermissionsHandler *rbac.PermissionsHandler
	JobHandler         *jobs.Handler
	AuditHandler       *audit.Handler
	RBACMiddleware     rbac.Middleware
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi router serving the JSON API under /api/v1.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.OK(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondError(w, httpx.NewError(httpx.CodeNotFound, "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondError(w, &httpx.Error{Code: httpx.CodeNotFound, Message: "method not allowed", Status: http.StatusMethodNotAllowed})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountRoutes)

		r.Group(func(r chi.Router) {
			r.Use(params.AuthHandler.Authenticate)

			if params.PermissionsHandler != nil {
				params.PermissionsHandler.MountRoutes(r)
			}
			if params.AccountsHandler != nil {
				params.AccountsHandler.MountRoutes(r)
			}
			if params.CatalogHandler != nil {
				r.Route("/catalog", params.CatalogHandler.MountRoutes)
			}
			if params.CustomersHandler != nil {
				params.CustomersHandler.MountRoutes(r)
			}
			if params.QuotationsHandler != nil {
				params.QuotationsHandler.MountRoutes(r)
			}
			if params.VisitsHandler != nil {
				params.VisitsHandler.MountRoutes(r)
			}
			if params.PaymentsHandler != nil {
				params.PaymentsHandler.MountRoutes(r)
			}
			if params.AuditHandler != nil {
				params.AuditHandler.MountRoutes(r)
			}
			if params.JobHandler != nil {
				r.Route("/jobs", func(r chi.Router) {
					r.Use(params.RBACMiddleware.RequireAll(rbac.PermJobsView))
					params.JobHandler.MountRoutes(r)
				})
			}
		})
	})

	return r
}
