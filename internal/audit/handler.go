package audit

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/solarquote/solarquote/internal/platform/httpx"
	"github.com/solarquote/solarquote/internal/rbac"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermAuditView))
		r.Get("/audit-logs", h.timeline)
	})
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r.URL.Query())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		if appErr := httpx.AsError(err); appErr.Status >= http.StatusInternalServerError {
			h.logger.Error("audit timeline failed", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, result)
}

func parseFilters(q url.Values) (TimelineFilters, error) {
	filters := TimelineFilters{
		Actor:    q.Get("actorId"),
		Entity:   q.Get("entity"),
		EntityID: q.Get("entityId"),
		Action:   q.Get("action"),
	}
	fields := make(map[string]string)
	for key, dst := range map[string]*time.Time{"from": &filters.From, "to": &filters.To} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		parsed, err := parseTime(raw)
		if err != nil {
			fields[key] = "must be RFC 3339 or YYYY-MM-DD"
			continue
		}
		*dst = parsed
	}
	for key, dst := range map[string]*int{"page": &filters.Page, "pageSize": &filters.PageSize} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			fields[key] = "must be a positive integer"
			continue
		}
		*dst = n
	}
	if len(fields) > 0 {
		return TimelineFilters{}, httpx.Validation("invalid audit filters", fields)
	}
	return filters, nil
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
