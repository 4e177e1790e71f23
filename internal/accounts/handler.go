package accounts

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/solarquote/solarquote/internal/platform/httpx"
	"github.com/solarquote/solarquote/internal/rbac"
	"github.com/solarquote/solarquote/internal/shared"
)

// Handler exposes account administration endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

func (h *Handler) listDealers(w http.ResponseWriter, r *http.Request) {
	dealers, err := h.service.ListDealers(r.Context())
	if err != nil {
		h.fail(w, "list dealers", err)
		return
	}
	httpx.OK(w, http.StatusOK, dealers)
}

func (h *Handler) createDealer(w http.ResponseWriter, r *http.Request) {
	var req CreateDealerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	account, err := h.service.CreateDealer(r.Context(), actor(r), req)
	if err != nil {
		h.fail(w, "create dealer", err)
		return
	}
	httpx.OK(w, http.StatusCreated, account)
}

func (h *Handler) listVisitors(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") != "true" || !actor(r).Is(shared.RoleAdmin)
	visitors, err := h.service.ListVisitors(r.Context(), activeOnly)
	if err != nil {
		h.fail(w, "list visitors", err)
		return
	}
	httpx.OK(w, http.StatusOK, visitors)
}

func (h *Handler) createVisitor(w http.ResponseWriter, r *http.Request) {
	var req CreateVisitorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	account, err := h.service.CreateVisitor(r.Context(), actor(r), req)
	if err != nil {
		h.fail(w, "create visitor", err)
		return
	}
	httpx.OK(w, http.StatusCreated, account)
}

func (h *Handler) createAccountManager(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountManagerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	account, err := h.service.CreateAccountManager(r.Context(), actor(r), req)
	if err != nil {
		h.fail(w, "create account manager", err)
		return
	}
	httpx.OK(w, http.StatusCreated, account)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	var req SetActiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	account, err := h.service.SetActive(r.Context(), actor(r), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, "set account active", err)
		return
	}
	httpx.OK(w, http.StatusOK, account)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if appErr := httpx.AsError(err); appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func actor(r *http.Request) shared.Principal {
	p, _ := shared.PrincipalFromContext(r.Context())
	return p
}
