package catalog

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/solarquote/solarquote/internal/platform/httpx"
	"github.com/solarquote/solarquote/internal/pricing"
	"github.com/solarquote/solarquote/internal/rbac"
	"github.com/solarquote/solarquote/internal/shared"
)

// Handler exposes the catalog endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermCatalogView))
		r.Get("/", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermCatalogManage))
		r.Put("/", h.replace)
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Current(r.Context())
	if err != nil {
		h.logger.Error("load catalog", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, c)
}

func (h *Handler) replace(w http.ResponseWriter, r *http.Request) {
	var c pricing.Catalog
	if err := httpx.DecodeJSON(r, &c); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := shared.PrincipalFromContext(r.Context())
	saved, err := h.service.Replace(r.Context(), p, c)
	if err != nil {
		if httpx.AsError(err).Status >= http.StatusInternalServerError {
			h.logger.Error("replace catalog", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, saved)
}
