package accounts

import (
	"github.com/go-chi/chi/v5"

	"github.com/solarquote/solarquote/internal/rbac"
)

// MountRoutes registers account administration routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermAccountManage))
		r.Get("/dealers", h.listDealers)
		r.Post("/dealers", h.createDealer)
		r.Post("/visitors", h.createVisitor)
		r.Post("/account-managers", h.createAccountManager)
		r.Put("/accounts/{id}/active", h.setActive)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermVisitorList))
		r.Get("/visitors", h.listVisitors)
	})
}
