package customers

import (
	"github.com/go-chi/chi/v5"

	"github.com/solarquote/solarquote/internal/rbac"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermCustomerView))
		r.Get("/customers", h.List)
		r.Get("/customers/{id}", h.Show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermCustomerEdit))
		r.Put("/customers/{id}", h.Update)
	})
}
