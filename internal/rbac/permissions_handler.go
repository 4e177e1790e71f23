package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/solarquote/solarquote/internal/platform/httpx"
	"github.com/solarquote/solarquote/internal/shared"
)

// PermissionsHandler reports the caller's role and permissions so clients
// can decide which screens to show.
type PermissionsHandler struct {
	service *Service
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(service *Service) *PermissionsHandler {
	return &PermissionsHandler{service: service}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Get("/me", h.me)
}

type meResponse struct {
	shared.Principal
	Permissions []string `json:"permissions"`
}

func (h *PermissionsHandler) me(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.NewError(httpx.CodeUnauthenticated, "authentication required"))
		return
	}
	httpx.OK(w, http.StatusOK, meResponse{Principal: principal, Permissions: h.service.EffectivePermissions(principal.Role)})
}
