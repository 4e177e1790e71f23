package visits

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/solarquote/solarquote/internal/platform/httpx"
	"github.com/solarquote/solarquote/internal/rbac"
	"github.com/solarquote/solarquote/internal/shared"
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

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateVisitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	visit, err := h.service.Create(r.Context(), actor, chi.URLParam(r, "id"), req)
	if err != nil {
		h.respondError(w, "create visit", err)
		return
	}
	httpx.OK(w, http.StatusCreated, visit)
}

func (h *Handler) ListForQuotation(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	visits, err := h.service.ListForQuotation(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "list visits", err)
		return
	}
	httpx.OK(w, http.StatusOK, visits)
}

func (h *Handler) CurrentStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	summary, err := h.service.CurrentStatus(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "visit status", err)
		return
	}
	httpx.OK(w, http.StatusOK, summary)
}

func (h *Handler) StatusSummaries(w http.ResponseWriter, r *http.Request) {
	var req StatusSummaryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	summaries, err := h.service.StatusSummaries(r.Context(), actor, req)
	if err != nil {
		h.respondError(w, "visit status summaries", err)
		return
	}
	httpx.OK(w, http.StatusOK, summaries)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		h.respondError(w, "delete visit", err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]string{"id": id})
}

func (h *Handler) ListAssigned(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	visits, err := h.service.ListAssigned(r.Context(), actor, VisitStatus(r.URL.Query().Get("status")))
	if err != nil {
		h.respondError(w, "list assigned visits", err)
		return
	}
	httpx.OK(w, http.StatusOK, visits)
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	visit, err := h.service.Approve(r.Context(), actor, chi.URLParam(r, "id"))
	h.respondVisit(w, "approve visit", visit, err)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.withReason(w, r, "reject visit", h.service.Reject)
}

func (h *Handler) Incomplete(w http.ResponseWriter, r *http.Request) {
	h.withReason(w, r, "mark visit incomplete", h.service.Incomplete)
}

func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	h.withReason(w, r, "reschedule visit", h.service.Reschedule)
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	var req CompleteRequest
	if err := httpx.DecodeJSONLimit(r, &req, MaxCompleteBodyBytes); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	visit, err := h.service.Complete(r.Context(), actor, chi.URLParam(r, "id"), req)
	h.respondVisit(w, "complete visit", visit, err)
}

type reasonAction func(ctx context.Context, actor shared.Principal, id string, req ReasonRequest) (*Visit, error)

func (h *Handler) withReason(w http.ResponseWriter, r *http.Request, op string, action reasonAction) {
	var req ReasonRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	visit, err := action(r.Context(), actor, chi.URLParam(r, "id"), req)
	h.respondVisit(w, op, visit, err)
}

func (h *Handler) respondVisit(w http.ResponseWriter, op string, visit *Visit, err error) {
	if err != nil {
		h.respondError(w, op, err)
		return
	}
	httpx.OK(w, http.StatusOK, visit)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if httpx.AsError(err).Status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
