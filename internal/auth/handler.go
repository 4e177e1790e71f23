package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/solarquote/solarquote/internal/platform/httpx"
	"github.com/solarquote/solarquote/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/account-manager/login", h.handleAccountManagerLogin)
	r.Post("/refresh", h.handleRefresh)
	r.Post("/logout", h.handleLogout)
	r.Post("/forgot-password", h.handleForgotPassword)
	r.Post("/reset-password", h.handleResetPassword)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	tokens, err := h.service.Login(r.Context(), req)
	if err != nil {
		h.fail(w, "login", err)
		return
	}
	httpx.OK(w, http.StatusOK, tokens)
}

func (h *Handler) handleAccountManagerLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	tokens, err := h.service.LoginAccountManager(r.Context(), req)
	if err != nil {
		h.fail(w, "account manager login", err)
		return
	}
	httpx.OK(w, http.StatusOK, tokens)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	tokens, err := h.service.Refresh(r.Context(), req)
	if err != nil {
		h.fail(w, "refresh", err)
		return
	}
	httpx.OK(w, http.StatusOK, tokens)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Logout(r.Context(), req.RefreshToken); err != nil {
		h.fail(w, "logout", err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]bool{"loggedOut": true})
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.ForgotPassword(r.Context(), req); err != nil {
		h.fail(w, "forgot password", err)
		return
	}
	httpx.OK(w, http.StatusAccepted, map[string]string{"message": "if the account exists a reset link has been sent"})
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.ResetPassword(r.Context(), req); err != nil {
		h.fail(w, "reset password", err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]bool{"reset": true})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if appErr := httpx.AsError(err); appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

// Authenticate resolves the Bearer access token into a shared.Principal.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			httpx.RespondError(w, httpx.NewError(httpx.CodeUnauthenticated, "authentication required"))
			return
		}
		principal, err := h.service.Principal(r.Context(), strings.TrimSpace(token))
		if err != nil {
			h.fail(w, "authenticate", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
	})
}
