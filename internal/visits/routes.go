package visits

import (
	"github.com/go-chi/chi/v5"

	"github.com/solarquote/solarquote/internal/rbac"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermVisitSchedule))
		r.Post("/quotations/{id}/visits", h.Create)
		r.Get("/quotations/{id}/visits", h.ListForQuotation)
		r.Get("/quotations/{id}/visits/status", h.CurrentStatus)
		r.Post("/visits/status-summary", h.StatusSummaries)
		r.Delete("/visits/{id}", h.Delete)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermVisitPerform))
		r.Get("/visits/assigned", h.ListAssigned)
		r.Post("/visits/{id}/approve", h.Approve)
		r.Post("/visits/{id}/reject", h.Reject)
		r.Post("/visits/{id}/complete", h.Complete)
		r.Post("/visits/{id}/incomplete", h.Incomplete)
		r.Post("/visits/{id}/reschedule", h.Reschedule)
	})
}
