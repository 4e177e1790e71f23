package quotations

import (
	"bytes"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/solarquote/solarquote/internal/platform/httpx"
	"github.com/solarquote/solarquote/internal/rbac"
	"github.com/solarquote/solarquote/internal/shared"
)

// IdempotencyHeader carries the client-chosen key for quotation creation.
const IdempotencyHeader = "Idempotency-Key"

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

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

type listResponse struct {
	Quotations []Quotation       `json:"quotations"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	breakdown, err := h.service.Quote(r.Context(), req)
	if err != nil {
		h.respondError(w, "quote", err)
		return
	}
	httpx.OK(w, http.StatusOK, breakdown)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateQuotationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	quotation, replayed, err := h.service.Create(r.Context(), actor, req, key)
	if err != nil {
		h.respondError(w, "create quotation", err)
		return
	}
	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	httpx.OK(w, status, quotation)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	quotations, pagination, err := h.service.List(r.Context(), actor, filterFromQuery(r), shared.PageFromQuery(r.URL.Query()))
	if err != nil {
		h.respondError(w, "list quotations", err)
		return
	}
	httpx.OK(w, http.StatusOK, listResponse{Quotations: quotations, Pagination: pagination})
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	quotations, err := h.service.ExportApproved(r.Context(), actor, filterFromQuery(r))
	if err != nil {
		h.respondError(w, "export quotations", err)
		return
	}
	now := time.Now().UTC()
	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, quotations, now); err != nil {
		h.respondError(w, "export quotations", err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="quotations-`+now.Format("20060102")+`.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	quotation, err := h.service.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "get quotation", err)
		return
	}
	httpx.OK(w, http.StatusOK, quotation)
}

func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	var req AdminEditRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	quotation, err := h.service.AdminEdit(r.Context(), actor, chi.URLParam(r, "id"), req)
	if err != nil {
		h.respondError(w, "edit quotation", err)
		return
	}
	httpx.OK(w, http.StatusOK, quotation)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	quotation, err := h.service.UpdateStatus(r.Context(), actor, chi.URLParam(r, "id"), req)
	if err != nil {
		h.respondError(w, "update quotation status", err)
		return
	}
	httpx.OK(w, http.StatusOK, quotation)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		h.respondError(w, "delete quotation", err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]string{"id": id})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	history, err := h.service.History(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "quotation history", err)
		return
	}
	httpx.OK(w, http.StatusOK, history)
}

func filterFromQuery(r *http.Request) ListQuotationsRequest {
	q := r.URL.Query()
	return ListQuotationsRequest{
		DealerID: q.Get("dealerId"),
		Status:   QuotationStatus(q.Get("status")),
		Search:   strings.TrimSpace(q.Get("search")),
	}
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if httpx.AsError(err).Status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
