package quotations

import (
	"github.com/go-chi/chi/v5"

	"github.com/solarquote/solarquote/internal/rbac"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermQuotationCreate))
		r.Post("/quotations/quote", h.Quote)
		r.Post("/quotations", h.Create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermQuotationExport))
		r.Get("/quotations/export.xlsx", h.Export)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermQuotationView))
		r.Get("/quotations", h.List)
		r.Get("/quotations/{id}", h.Show)
		r.Get("/quotations/{id}/history", h.History)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermQuotationManage))
		r.Patch("/quotations/{id}", h.Edit)
		r.Put("/quotations/{id}/status", h.UpdateStatus)
		r.Delete("/quotations/{id}", h.Delete)
	})
}
